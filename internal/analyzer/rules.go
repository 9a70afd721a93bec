package analyzer

import (
	"context"
	"regexp"
	"strings"

	"github.com/leasedesk/reconcile/internal/dedup"
	"github.com/leasedesk/reconcile/internal/model"
)

// Rules is a deterministic analyzer that classifies candidates from field
// name keywords and value shape alone. It never fails and serves as the
// floor of the roster when remote judges are unavailable.
type Rules struct{}

func (Rules) ID() string { return "rules" }

var (
	currencyValue = regexp.MustCompile(`^[-(]?[$€£]\s?\d{1,3}(,\d{3})*(\.\d+)?\)?$|^\d{1,3}(,\d{3})*\.\d{2}$`)
	phoneValue    = regexp.MustCompile(`^\+?[\d\s().-]{7,20}$`)
	emailValue    = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
	dateValue     = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$|^\d{1,2}/\d{1,2}/\d{2,4}$`)
	numberValue   = regexp.MustCompile(`^-?\d+(\.\d+)?$`)
	formulaValue  = regexp.MustCompile(`^=|[A-Za-z_]+\s*[*+/]\s*[A-Za-z0-9_.]+`)
)

// semanticKeywords maps field-name tokens to semantic types, most specific
// first.
var semanticKeywords = []struct {
	token    string
	semantic string
}{
	{"monthly_rent", "monthly_rent"},
	{"base_rent", "base_rent"},
	{"rent", "rent_amount"},
	{"deposit", "deposit_amount"},
	{"escalation", "rent_escalation"},
	{"cam", "cam_charge"},
	{"phone", "contact_phone"},
	{"fax", "contact_fax"},
	{"email", "contact_email"},
	{"address", "property_address"},
	{"expir", "lease_expiration"},
	{"commence", "lease_commencement"},
	{"term", "lease_term"},
	{"sqft", "square_footage"},
	{"square", "square_footage"},
	{"total", "total_amount"},
}

func (Rules) Judge(_ context.Context, c model.CandidateFact) (*model.Judgment, error) {
	name := dedup.NormalizeName(c.RawFieldName)
	value := strings.TrimSpace(c.RawValue)

	dataType := judgeDataType(value)

	semantic := ""
	for _, kw := range semanticKeywords {
		if strings.Contains(name, kw.token) {
			semantic = kw.semantic
			break
		}
	}

	confidence := 0.5
	switch {
	case semantic != "" && shapeAgrees(semantic, dataType):
		confidence = 0.85
	case semantic != "":
		confidence = 0.65
	default:
		semantic = name
		confidence = 0.4
	}

	j := &model.Judgment{
		SemanticType:  semantic,
		CanonicalName: name,
		DataType:      dataType,
		Confidence:    confidence,
	}
	if dataType == model.DataTypeFormula {
		j.Formula = value
	}
	if dataType == model.DataTypeCurrency {
		j.Unit = "USD"
	}
	return j, nil
}

func judgeDataType(value string) model.DataType {
	switch {
	case strings.HasPrefix(value, "="), formulaValue.MatchString(value) && !currencyValue.MatchString(value) && !phoneValue.MatchString(value):
		return model.DataTypeFormula
	case currencyValue.MatchString(value):
		return model.DataTypeCurrency
	case emailValue.MatchString(value):
		return model.DataTypeEmail
	case dateValue.MatchString(value):
		return model.DataTypeDate
	case numberValue.MatchString(value):
		return model.DataTypeNumber
	case phoneValue.MatchString(value) && strings.ContainsAny(value, "0123456789"):
		return model.DataTypePhone
	default:
		return model.DataTypeText
	}
}

// shapeAgrees reports whether the value shape is plausible for the
// semantic type picked from the field name.
func shapeAgrees(semantic string, dt model.DataType) bool {
	switch {
	case strings.Contains(semantic, "rent"), strings.Contains(semantic, "deposit"),
		strings.Contains(semantic, "amount"), strings.Contains(semantic, "charge"):
		return dt == model.DataTypeCurrency || dt == model.DataTypeNumber || dt == model.DataTypeFormula
	case strings.Contains(semantic, "phone"), strings.Contains(semantic, "fax"):
		return dt == model.DataTypePhone
	case strings.Contains(semantic, "email"):
		return dt == model.DataTypeEmail
	case strings.Contains(semantic, "expiration"), strings.Contains(semantic, "commencement"):
		return dt == model.DataTypeDate
	case strings.Contains(semantic, "footage"), strings.Contains(semantic, "term"):
		return dt == model.DataTypeNumber
	default:
		return true
	}
}
