package payroll

import "github.com/shopspring/decimal"

// BaseSalary is the monthly salary of fixed staff, zero for freelancers.
func BaseSalary(person Personnel) decimal.Decimal {
	if person.Kind != KindFixed {
		return decimal.Zero
	}
	return decimalOrZero(person.MonthlySalary)
}

// GrossPay = base salary + flat-rate pay + overtime pay.
func GrossPay(base, flatRate, overtime decimal.Decimal) decimal.Decimal {
	return base.Add(flatRate).Add(overtime)
}
