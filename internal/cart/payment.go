package cart

import "strings"

// PaymentConfig describes the shop's bank account for transfers.
type PaymentConfig struct {
	BankID        string
	BankName      string
	BankCode      string
	AccountNumber string
	AccountName   string
}

// PaymentMethods lists the checkout options. Bank transfer is offered only
// when an account number is configured.
func PaymentMethods(cfg PaymentConfig) []PaymentMethod {
	methods := make([]PaymentMethod, 0, 2)
	if strings.TrimSpace(cfg.AccountNumber) != "" {
		id := cfg.BankID
		if id == "" {
			id = "bank"
		}
		methods = append(methods, PaymentMethod{
			ID:            id,
			Name:          cfg.BankName,
			Type:          PaymentBankTransfer,
			Icon:          "🏦",
			BankCode:      cfg.BankCode,
			AccountNumber: cfg.AccountNumber,
			AccountName:   cfg.AccountName,
		})
	}
	methods = append(methods, PaymentMethod{
		ID:   "cod",
		Name: "Cash on delivery (COD)",
		Type: PaymentCOD,
		Icon: "💵",
	})
	return methods
}

// FindPaymentMethod looks a method up by id.
func FindPaymentMethod(methods []PaymentMethod, id string) (PaymentMethod, bool) {
	for _, m := range methods {
		if m.ID == id {
			return m, true
		}
	}
	return PaymentMethod{}, false
}

// TransferContent is the reference a customer writes on a bank transfer.
func TransferContent(orderCode string) string {
	return "TT " + orderCode
}
