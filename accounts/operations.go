/*
Package accounts provides the account-domain operations for the gateway.

These preset functions create JSON operation definitions for the account
procedures (registration, payment recording, profile updates). They
construct JSON strings directly to avoid import cycles with the factory
package.

USAGE:
  import "github.com/warp/procedure-gateway/accounts"

  op, err := factory.NewOperationFactory().Parse(accounts.RegisterUserJSON("accounts"))
*/
package accounts

import (
	"encoding/json"
)

// Guard names the gateway recognizes. Ordering matters: the app-identity
// check always precedes the user-identity check.
const (
	GuardAppKey  = "app_key"
	GuardSession = "session"
)

// Collections mirrored by the account operations.
const (
	CollectionUsers    = "users"
	CollectionPayments = "payments"
	CollectionProfiles = "profiles"
)

// RegisterUserJSON returns JSON for the user-registration operation.
// The procedure's user record is mirrored to the users collection,
// matched by email so re-registration updates instead of duplicating.
func RegisterUserJSON(schema string) string {
	oj := map[string]interface{}{
		"name":      "register-user",
		"schema":    schema,
		"procedure": "register_user",
		"params":    []string{"name", "email", "phone", "currency"},
		"guards":    []string{GuardAppKey},
		"backups": []map[string]interface{}{{
			"collection":   CollectionUsers,
			"lookup_keys":  []string{"email"},
			"result_label": "user",
		}},
	}
	b, _ := json.MarshalIndent(oj, "", "  ")
	return string(b)
}

// RecordPaymentJSON returns JSON for the payment-recording operation.
// Payments always create a fresh mirror document; the user record is
// refreshed alongside, matched by email.
func RecordPaymentJSON(schema string) string {
	oj := map[string]interface{}{
		"name":      "record-payment",
		"schema":    schema,
		"procedure": "record_payment",
		"params":    []string{"user_id", "amount", "currency", "reference", "metadata"},
		"guards":    []string{GuardAppKey, GuardSession},
		"backups": []map[string]interface{}{
			{
				"collection":   CollectionPayments,
				"result_label": "payment",
			},
			{
				"collection":   CollectionUsers,
				"lookup_keys":  []string{"email"},
				"result_label": "user",
			},
		},
	}
	b, _ := json.MarshalIndent(oj, "", "  ")
	return string(b)
}

// UpdateProfileJSON returns JSON for the profile-update operation. The
// mirror target is matched on two lookup keys, email and phone.
func UpdateProfileJSON(schema string) string {
	oj := map[string]interface{}{
		"name":      "update-profile",
		"schema":    schema,
		"procedure": "update_profile",
		"params":    []string{"user_id", "name", "phone", "preferences"},
		"guards":    []string{GuardAppKey, GuardSession},
		"backups": []map[string]interface{}{{
			"collection":   CollectionProfiles,
			"lookup_keys":  []string{"email", "phone"},
			"result_label": "profile",
		}},
	}
	b, _ := json.MarshalIndent(oj, "", "  ")
	return string(b)
}

// DefaultOperationsJSON returns every preset, for seeding a fresh gateway.
func DefaultOperationsJSON(schema string) []string {
	return []string{
		RegisterUserJSON(schema),
		RecordPaymentJSON(schema),
		UpdateProfileJSON(schema),
	}
}
