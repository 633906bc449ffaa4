package store

import (
	"errors"
	"fmt"

	"github.com/letsencrypt/borp"

	"github.com/icao-pkd/pkd-core/core"
)

// pkdTypeConverter teaches borp how to move the domain's string-backed enum
// types to and from their underlying SQL column, the same role the
// teacher's BoulderTypeConverter plays for core.AcmeStatus/core.OCSPStatus.
type pkdTypeConverter struct{}

func (c pkdTypeConverter) ToDb(val interface{}) (interface{}, error) {
	switch t := val.(type) {
	case core.CertType:
		return string(t), nil
	case core.ValidationStatus:
		return string(t), nil
	case core.RevocationStatus:
		return string(t), nil
	case core.SyncOverallStatus:
		return string(t), nil
	case core.TriggerSource:
		return string(t), nil
	case core.ReconciliationStatus:
		return string(t), nil
	case core.ReconciliationOperation:
		return string(t), nil
	case core.OperationStatus:
		return string(t), nil
	case core.PaOverallStatus:
		return string(t), nil
	default:
		return val, nil
	}
}

func (c pkdTypeConverter) FromDb(target interface{}) (borp.CustomScanner, bool) {
	switch target.(type) {
	case *core.CertType:
		return stringEnumScanner(target, func(s string, t interface{}) { *(t.(*core.CertType)) = core.CertType(s) })
	case *core.ValidationStatus:
		return stringEnumScanner(target, func(s string, t interface{}) { *(t.(*core.ValidationStatus)) = core.ValidationStatus(s) })
	case *core.RevocationStatus:
		return stringEnumScanner(target, func(s string, t interface{}) { *(t.(*core.RevocationStatus)) = core.RevocationStatus(s) })
	case *core.SyncOverallStatus:
		return stringEnumScanner(target, func(s string, t interface{}) { *(t.(*core.SyncOverallStatus)) = core.SyncOverallStatus(s) })
	case *core.TriggerSource:
		return stringEnumScanner(target, func(s string, t interface{}) { *(t.(*core.TriggerSource)) = core.TriggerSource(s) })
	case *core.ReconciliationStatus:
		return stringEnumScanner(target, func(s string, t interface{}) { *(t.(*core.ReconciliationStatus)) = core.ReconciliationStatus(s) })
	case *core.ReconciliationOperation:
		return stringEnumScanner(target, func(s string, t interface{}) { *(t.(*core.ReconciliationOperation)) = core.ReconciliationOperation(s) })
	case *core.OperationStatus:
		return stringEnumScanner(target, func(s string, t interface{}) { *(t.(*core.OperationStatus)) = core.OperationStatus(s) })
	case *core.PaOverallStatus:
		return stringEnumScanner(target, func(s string, t interface{}) { *(t.(*core.PaOverallStatus)) = core.PaOverallStatus(s) })
	default:
		return borp.CustomScanner{}, false
	}
}

func stringEnumScanner(target interface{}, assign func(string, interface{})) (borp.CustomScanner, bool) {
	binder := func(holder, target interface{}) error {
		s, ok := holder.(*string)
		if !ok {
			return fmt.Errorf("store: unable to convert %T to *string", holder)
		}
		if s == nil {
			return errors.New("store: nil enum column")
		}
		assign(*s, target)
		return nil
	}
	return borp.CustomScanner{Holder: new(string), Target: target, Binder: binder}, true
}
