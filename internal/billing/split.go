package billing

import (
	"github.com/vivekyadav247/billmngapp-backend/internal/domain"
	"github.com/vivekyadav247/billmngapp-backend/internal/money"
	"github.com/vivekyadav247/billmngapp-backend/internal/store"
)

// ValidateSplit rounds each part of the split, rejects negative parts and
// requires the parts to add up to total exactly. The payment mode is derived
// from the rounded split.
func ValidateSplit(total float64, in domain.PaymentSplit) (domain.PaymentSplit, domain.PaymentMode, error) {
	for _, part := range []float64{in.Cash, in.Online, in.Udhar} {
		if !money.Finite(part) {
			return domain.PaymentSplit{}, "", store.Invalid("payment split values must be non-negative numbers")
		}
	}

	split := domain.PaymentSplit{
		Cash:   money.Round2(in.Cash),
		Online: money.Round2(in.Online),
		Udhar:  money.Round2(in.Udhar),
	}
	// Signs are checked after rounding, so -0.001 counts as zero.
	for _, part := range []float64{split.Cash, split.Online, split.Udhar} {
		if part < 0 {
			return domain.PaymentSplit{}, "", store.Invalid("payment split values must be non-negative numbers")
		}
	}
	total = money.Round2(total)
	if sum := money.Sum(split.Cash, split.Online, split.Udhar); sum != total {
		return domain.PaymentSplit{}, "", store.Invalid("payment split total %.2f must equal bill total %.2f", sum, total)
	}

	return split, DeriveMode(total, split), nil
}

// DeriveMode checks cash, online, then udhar, so a zero total with an all
// zero split is FULL_CASH.
func DeriveMode(total float64, split domain.PaymentSplit) domain.PaymentMode {
	switch total {
	case split.Cash:
		return domain.PaymentFullCash
	case split.Online:
		return domain.PaymentFullOnline
	case split.Udhar:
		return domain.PaymentFullUdhar
	default:
		return domain.PaymentHybrid
	}
}
