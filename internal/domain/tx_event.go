package domain

// TxStatus is the outcome of a submitted instruction.
type TxStatus string

const (
	TxStatusCommitted TxStatus = "COMMITTED"
	TxStatusRejected  TxStatus = "REJECTED"
)

// EffectType enumerates the balance and lifecycle effects a transaction can stage.
type EffectType string

const (
	EffectLamportTransfer EffectType = "LAMPORT_TRANSFER"
	EffectTokenTransfer   EffectType = "TOKEN_TRANSFER"
	EffectMintTo          EffectType = "MINT_TO"
	EffectBurn            EffectType = "BURN"
	EffectCreateAccount   EffectType = "CREATE_ACCOUNT"
	EffectCloseAccount    EffectType = "CLOSE_ACCOUNT"
)

// Effect is one staged intent inside a transaction, in application order.
type Effect struct {
	Type   EffectType `json:"type"`
	From   string     `json:"from,omitempty"`
	To     string     `json:"to,omitempty"`
	Mint   string     `json:"mint,omitempty"` // empty for native lamports
	Amount uint64     `json:"amount"`
}

// TxEvent records one submitted instruction.
// Corresponds to the tx_events table.
type TxEvent struct {
	Signature   string   `json:"signature"` // deterministic hash (idhash)
	Sequence    uint64   `json:"sequence"`  // submission counter, unique per ledger
	Slot        uint64   `json:"slot"`
	BlockTime   int64    `json:"block_time"` // ledger clock, unix seconds
	Program     string   `json:"program"`
	Instruction string   `json:"instruction"`
	Signers     []string `json:"signers"`
	Status      TxStatus `json:"status"`
	ErrorCode   string   `json:"error_code,omitempty"`
	Effects     []Effect `json:"effects,omitempty"`
}
