package documents

// applyMode selects how completion maps a move onto the ledger.
type applyMode int

const (
	applyIncrement applyMode = iota
	applyDecrement
	applyTransfer
	applySetAbsolute
)

// kindSpec parameterizes the shared state machine per document kind:
// reference prefix, move shape, availability gating and completion semantics.
type kindSpec struct {
	moveType MoveType
	apply    applyMode

	// usesWarehouse marks kinds whose header carries a warehouse id;
	// transfers carry a location pair instead.
	usesWarehouse bool

	moveHasSource      bool
	moveHasDestination bool

	// gated kinds check availability at create/update time and may enter
	// WAITING; the WAITING re-check applies to them too.
	gated bool
	// checkOnDraftValidate additionally re-checks availability when
	// validating out of DRAFT; only deliveries do this.
	checkOnDraftValidate bool

	refPrefix func(warehouseCode string) string
}

var kindSpecs = map[Kind]kindSpec{
	KindReceipt: {
		moveType:           MoveIncoming,
		apply:              applyIncrement,
		usesWarehouse:      true,
		moveHasDestination: true,
		refPrefix:          func(code string) string { return code + "/IN" },
	},
	KindDelivery: {
		moveType:             MoveOutgoing,
		apply:                applyDecrement,
		usesWarehouse:        true,
		moveHasSource:        true,
		gated:                true,
		checkOnDraftValidate: true,
		refPrefix:            func(code string) string { return code + "/OUT" },
	},
	KindTransfer: {
		moveType:           MoveInternal,
		apply:              applyTransfer,
		moveHasSource:      true,
		moveHasDestination: true,
		gated:              true,
		refPrefix:          func(string) string { return "TRANS" },
	},
	KindAdjustment: {
		moveType:           MoveAdjustment,
		apply:              applySetAbsolute,
		usesWarehouse:      true,
		moveHasDestination: true,
		refPrefix:          func(string) string { return "ADJ" },
	},
}
