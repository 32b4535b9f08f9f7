package domain

// ─── Store Interface ────────────────────────────────────────────────────────
// Every collection lives in its own document, protected by a per-key
// advisory lock: shared for Load, exclusive for Save and Update. There is
// deliberately no cross-document transaction — callers that touch two
// documents perform two separate writes (see the policy service for the
// consequences).

// Document keys. One document per entity collection.
const (
	KeyGroups         = "groups"
	KeyChildren       = "children"
	KeyEvents         = "events"
	KeyActionsConfig  = "actions_config"
	KeyMonthlyResults = "monthly_results"
	KeyRolloverMarker = "last_month_reset"
	KeyAdmins         = "admins"
)

// Tx gives single-document read/write access under the exclusive lock held
// by Store.Update.
type Tx interface {
	Load(out any) error
	Save(v any) error
}

// Store is a key→JSON-document store with advisory locking. Infrastructure
// implements it; application services depend on it.
type Store interface {
	// Load reads the document for key under the shared lock.
	Load(key string, out any) error

	// Save replaces the document for key under the exclusive lock.
	Save(key string, v any) error

	// Update holds the exclusive lock for key while fn performs a
	// read-modify-write. fn must not touch other documents through the Tx.
	Update(key string, fn func(tx Tx) error) error
}
