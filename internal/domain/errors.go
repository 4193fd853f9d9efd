package domain

import "errors"

var (
	// Ошибка отсутствующего или некорректного идентификатора клиента.
	ErrClientIDInvalid = errors.New("client_id must be greater than zero")
	// Ошибка отсутствия хотя бы одной позиции в заказе.
	ErrItemsRequired = errors.New("order must contain at least one item")
	// Ошибка некорректного идентификатора товара.
	ErrProductIDInvalid = errors.New("product_id must be greater than zero")
	// Ошибка при некорректном количестве товара (<= 0).
	ErrItemQtyInvalid = errors.New("item qty must be greater than zero")
	// ErrStatusUnknown возвращается при попытке распарсить статус вне перечисления.
	ErrStatusUnknown = errors.New("unknown order status")
	// ErrOrderNotFound возвращается, если заказ не найден в репозитории.
	ErrOrderNotFound = errors.New("order not found")
	// ErrOutboxPublish — ошибка при публикации сообщения из outbox.
	ErrOutboxPublish = errors.New("outbox publish failed")
)

// FaultKind классифицирует ошибку оркестрации для вызывающей стороны.
type FaultKind string

const (
	// FaultNotFound — заказ или упомянутая в запросе сущность отсутствует.
	FaultNotFound FaultKind = "not_found"
	// FaultValidationFailed — запрос не прошёл форматную валидацию.
	FaultValidationFailed FaultKind = "validation_failed"
	// FaultInsufficientStock — запрошенное количество превышает остаток.
	FaultInsufficientStock FaultKind = "insufficient_stock"
	// FaultDependencyFailure — удалённый сервис недоступен или вернул
	// противоречивые данные.
	FaultDependencyFailure FaultKind = "dependency_failure"
	// FaultPartialMutation — часть списаний склада прошла до отказа;
	// остались наблюдаемые побочные эффекты.
	FaultPartialMutation FaultKind = "partial_mutation"
	// FaultInvalidTransition — смена статуса не меняет значение.
	FaultInvalidTransition FaultKind = "invalid_transition"
	// FaultTimeout — удалённый вызов не уложился в отведённый таймаут.
	FaultTimeout FaultKind = "timeout"
)

// Fault — структурированная ошибка оркестрации: вид, сообщение и
// идентификаторы, достаточные для диагностики без парсинга текста.
type Fault struct {
	Kind    FaultKind
	Message string

	OrderID   int64
	ClientID  int64
	ProductID int64
	Available int32
	Requested int32

	// CompletedProducts перечисляет товары, чьё списание успело пройти
	// до отказа (только для FaultPartialMutation).
	CompletedProducts []int64
	// Compensated показывает, удалось ли полностью откатить списания.
	Compensated bool

	Err error
}

func (f *Fault) Error() string {
	if f.Message != "" {
		return string(f.Kind) + ": " + f.Message
	}
	return string(f.Kind)
}

func (f *Fault) Unwrap() error {
	return f.Err
}

// KindOf возвращает вид структурированной ошибки или пустую строку,
// если err не является Fault.
func KindOf(err error) FaultKind {
	var fault *Fault
	if errors.As(err, &fault) {
		return fault.Kind
	}
	return ""
}

// IsFault проверяет, что ошибка классифицирована заданным видом.
func IsFault(err error, kind FaultKind) bool {
	return KindOf(err) == kind
}

// AsFault извлекает Fault из цепочки ошибок.
func AsFault(err error) (*Fault, bool) {
	var fault *Fault
	ok := errors.As(err, &fault)
	return fault, ok
}
