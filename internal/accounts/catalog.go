package accounts

import "brunance/internal/core"

func personal(id, name string, cat core.Category, bank string, owner core.Member) Account {
	return Account{
		ID:             id,
		Name:           name,
		Category:       cat,
		Bank:           bank,
		Owner:          owner,
		AllowedHolders: []core.Member{owner},
	}
}

// builtin is the household catalog used when no catalog file is configured.
func builtin() []Account {
	fran, car := core.MemberFran, core.MemberCar
	ripio := personal("ripio-car", "Ripiocard Car", core.CategoryDigitalWallet, "", car)
	ripio.NoTransfers = true

	return []Account{
		personal("cash-fran", "Efectivo Fran", core.CategoryCash, "", fran),
		personal("mp-fran", "Dinero Mercado Pago Fran", core.CategoryDigitalWallet, "", fran),
		personal("db-bna-fran", "Cuenta BNA Fran", core.CategoryDebitAccount, "BNA", fran),
		personal("db-bapro-fran", "Cuenta Bapro Fran", core.CategoryDebitAccount, "Bapro", fran),
		personal("db-macro-fran", "Cuenta Macro Fran", core.CategoryDebitAccount, "Macro", fran),

		personal("tc-visa-macro-fran", "Visa Macro Fran", core.CategoryCreditCard, "Macro", fran),
		personal("tc-amex-macro-fran", "Amex Macro Fran", core.CategoryCreditCard, "Macro", fran),
		personal("tc-visa-bna-fran", "Visa BNA Fran", core.CategoryCreditCard, "BNA", fran),

		personal("cash-car", "Efectivo Car", core.CategoryCash, "", car),
		ripio,
		personal("mp-car", "Dinero Mercado Pago Car", core.CategoryDigitalWallet, "", car),
		personal("db-macro-car", "Cuenta Macro Car", core.CategoryDebitAccount, "Macro", car),

		personal("tc-visa-macro-car", "Visa Macro Car", core.CategoryCreditCard, "Macro", car),
		personal("tc-visa-bna-car", "Visa BNA Car", core.CategoryCreditCard, "BNA", car),
	}
}
