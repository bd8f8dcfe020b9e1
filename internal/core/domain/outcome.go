package domain

import "errors"

var (
	ErrOutOfStock      = errors.New("requested amount exceeds stock")
	ErrProductNotFound = errors.New("product not in cart")
	ErrUnknownProduct  = errors.New("product not in catalog")
)

type Operation string

const (
	OpAdd    Operation = "add"
	OpRemove Operation = "remove"
	OpUpdate Operation = "update"
)

// User-facing notices, shown as toasts by the storefront.
const (
	NoticeOutOfStock   = "Quantidade solicitada fora de estoque"
	NoticeAddFailed    = "Erro na adição do produto"
	NoticeRemoveFailed = "Erro na remoção do produto"
	NoticeUpdateFailed = "Erro na alteração de quantidade do produto"
)

type Outcome int

const (
	OutcomeOK Outcome = iota
	OutcomeNotFound
	OutcomeOutOfStock
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeOK:
		return "ok"
	case OutcomeNotFound:
		return "not_found"
	case OutcomeOutOfStock:
		return "out_of_stock"
	default:
		return "failed"
	}
}

// Classify maps an error returned by a cart operation to its outcome.
func Classify(err error) Outcome {
	switch {
	case err == nil:
		return OutcomeOK
	case errors.Is(err, ErrOutOfStock):
		return OutcomeOutOfStock
	case errors.Is(err, ErrProductNotFound), errors.Is(err, ErrUnknownProduct):
		return OutcomeNotFound
	default:
		return OutcomeFailed
	}
}

// NoticeFor returns the toast text for a failed operation, or "" when err is nil.
// Only out-of-stock has its own message; everything else gets the generic
// per-operation text.
func NoticeFor(op Operation, err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, ErrOutOfStock) {
		return NoticeOutOfStock
	}
	switch op {
	case OpAdd:
		return NoticeAddFailed
	case OpRemove:
		return NoticeRemoveFailed
	default:
		return NoticeUpdateFailed
	}
}
