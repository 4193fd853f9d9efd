package clients

import (
	"context"
	"errors"

	log "github.com/sirupsen/logrus"

	"github.com/expirians/orders-ms/internal/domain"
	"github.com/expirians/orders-ms/internal/transport/tcprpc"
)

const commandValidateClient = "validateClient"

type validateClientRequest struct {
	ClientID int64 `json:"clientId"`
}

type validateClientResponse struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// DirectoryClient ходит в клиентский справочник по внутреннему RPC.
type DirectoryClient struct {
	rpc    *tcprpc.Client
	logger *log.Entry
}

// NewDirectoryClient создаёт клиента справочника поверх tcprpc.
func NewDirectoryClient(rpc *tcprpc.Client, logger *log.Entry) *DirectoryClient {
	if logger == nil {
		logger = log.New().WithField("component", "clients-directory")
	}
	return &DirectoryClient{rpc: rpc, logger: logger}
}

// ValidateClient подтверждает существование клиента и возвращает его имя.
func (c *DirectoryClient) ValidateClient(ctx context.Context, clientID int64) (domain.Client, error) {
	var resp validateClientResponse
	err := c.rpc.Invoke(ctx, commandValidateClient, validateClientRequest{ClientID: clientID}, &resp)
	if err != nil {
		c.logger.WithError(err).WithField("client_id", clientID).Warn("client validation call failed")
		return domain.Client{}, faultFromRPC(err, clientID)
	}
	return domain.Client{ID: resp.ID, Name: resp.Name}, nil
}

// faultFromRPC переводит транспортную ошибку в структурированный отказ домена.
func faultFromRPC(err error, clientID int64) error {
	var rpcErr *tcprpc.Error
	if errors.As(err, &rpcErr) {
		kind := domain.FaultKind(rpcErr.Kind)
		switch kind {
		case domain.FaultNotFound, domain.FaultValidationFailed:
			return &domain.Fault{
				Kind:     kind,
				Message:  rpcErr.Message,
				ClientID: clientID,
				Err:      err,
			}
		}
		return &domain.Fault{
			Kind:     domain.FaultDependencyFailure,
			Message:  rpcErr.Message,
			ClientID: clientID,
			Err:      err,
		}
	}
	return err
}

var _ domain.ClientDirectory = (*DirectoryClient)(nil)
