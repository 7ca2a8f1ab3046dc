package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"solana-custody-lab/internal/domain"
	"solana-custody-lab/internal/idhash"
	"solana-custody-lab/internal/observability"
	"solana-custody-lab/internal/pda"
	"solana-custody-lab/internal/protocol"
)

var errConservation = errors.New("ledger: lamport conservation violated")

// Instruction describes one operation submitted to a program.
type Instruction struct {
	Program pda.Address
	Name    string
	// Signers are the keys that authorized the instruction.
	Signers []pda.Address
	// Writable lists every account the instruction may modify. They are locked
	// for the duration of the instruction.
	Writable []pda.Address
}

// Receipt describes a committed instruction.
type Receipt struct {
	Signature string
	Sequence  uint64
	Slot      uint64
	BlockTime int64
	Effects   []domain.Effect
}

type entry struct {
	base  *Account // committed version when first read, nil if absent
	cur   *Account // staged version, nil if absent or closed
	dirty bool
}

type txState struct {
	ledger   *Ledger
	ix       Instruction
	now      int64
	signers  map[pda.Address]struct{}
	writable map[pda.Address]struct{}
	entries  map[pda.Address]*entry
	order    []pda.Address
	effects  []domain.Effect
	minted   uint64
}

// Tx is the staging view handed to program logic. Nothing it does is visible
// outside the instruction until the ledger commits it.
type Tx struct {
	s       *txState
	program pda.Address
}

// Execute runs fn as one atomic instruction. Either every staged change commits
// or none does.
func (l *Ledger) Execute(ctx context.Context, ix Instruction, fn func(tx *Tx) error) (*Receipt, error) {
	start := time.Now()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	writable := dedupe(ix.Writable)
	if err := l.locks.acquire(writable); err != nil {
		return nil, l.reject(ctx, ix, start, err)
	}
	defer l.locks.release(writable)

	s := &txState{
		ledger:   l,
		ix:       ix,
		now:      l.clock.Now(),
		signers:  make(map[pda.Address]struct{}, len(ix.Signers)),
		writable: make(map[pda.Address]struct{}, len(writable)),
		entries:  make(map[pda.Address]*entry),
	}
	for _, k := range ix.Signers {
		s.signers[k] = struct{}{}
	}
	for _, k := range writable {
		s.writable[k] = struct{}{}
	}

	if err := fn(&Tx{s: s, program: ix.Program}); err != nil {
		return nil, l.reject(ctx, ix, start, err)
	}
	if err := s.validate(); err != nil {
		return nil, l.reject(ctx, ix, start, err)
	}

	receipt, err := l.commit(ctx, s)
	if err != nil {
		return nil, l.reject(ctx, ix, start, err)
	}

	l.record(ctx, domain.TxEvent{
		Signature:   receipt.Signature,
		Sequence:    receipt.Sequence,
		Slot:        receipt.Slot,
		BlockTime:   receipt.BlockTime,
		Program:     ix.Program.String(),
		Instruction: ix.Name,
		Signers:     addressStrings(ix.Signers),
		Status:      domain.TxStatusCommitted,
		Effects:     receipt.Effects,
	})
	observability.RecordInstruction(ProgramName(ix.Program), ix.Name, string(domain.TxStatusCommitted), time.Since(start).Seconds())

	l.logger.Debug("instruction committed",
		zap.String("program", ProgramName(ix.Program)),
		zap.String("instruction", ix.Name),
		zap.String("signature", receipt.Signature),
		zap.Uint64("slot", receipt.Slot),
		zap.Int("effects", len(receipt.Effects)),
	)
	return receipt, nil
}

func (l *Ledger) commit(ctx context.Context, s *txState) (*Receipt, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	slot := l.slot + 1

	var upserts []*domain.AccountRecord
	var deletes []string
	for _, key := range s.order {
		e := s.entries[key]
		if !e.dirty {
			continue
		}
		if e.cur == nil {
			if e.base != nil {
				deletes = append(deletes, key.String())
			}
			continue
		}
		rec, err := EncodeAccount(e.cur, slot)
		if err != nil {
			return nil, err
		}
		upserts = append(upserts, rec)
	}

	if l.store != nil {
		if err := l.store.Apply(ctx, upserts, deletes); err != nil {
			return nil, fmt.Errorf("persist accounts: %w", err)
		}
	}

	created, closed := 0, 0
	for _, key := range s.order {
		e := s.entries[key]
		if !e.dirty {
			continue
		}
		switch {
		case e.cur == nil && e.base != nil:
			delete(l.accounts, key)
			closed++
		case e.cur != nil:
			if e.base == nil {
				created++
			}
			l.accounts[key] = e.cur
		}
	}
	l.slot = slot
	observability.RecordAccountLifecycle(created, closed)

	seq := l.sequence.Add(1)
	return &Receipt{
		Signature: idhash.ComputeTxSignature(s.ix.Program.String(), s.ix.Name, addressStrings(s.ix.Signers), slot, seq),
		Sequence:  seq,
		Slot:      slot,
		BlockTime: s.now,
		Effects:   s.effects,
	}, nil
}

func (l *Ledger) reject(ctx context.Context, ix Instruction, start time.Time, err error) error {
	name := ProgramName(ix.Program)
	slot := l.Slot()
	seq := l.sequence.Add(1)

	l.record(ctx, domain.TxEvent{
		Signature:   idhash.ComputeTxSignature(ix.Program.String(), ix.Name, addressStrings(ix.Signers), slot, seq),
		Sequence:    seq,
		Slot:        slot,
		BlockTime:   l.clock.Now(),
		Program:     ix.Program.String(),
		Instruction: ix.Name,
		Signers:     addressStrings(ix.Signers),
		Status:      domain.TxStatusRejected,
		ErrorCode:   protocol.CodeOf(err),
	})
	observability.RecordInstruction(name, ix.Name, string(domain.TxStatusRejected), time.Since(start).Seconds())

	l.logger.Info("instruction rejected",
		zap.String("program", name),
		zap.String("instruction", ix.Name),
		zap.Error(err),
	)
	return fmt.Errorf("%s.%s: %w", name, ix.Name, err)
}

func (l *Ledger) record(ctx context.Context, e domain.TxEvent) {
	if l.events != nil {
		if err := l.events.Insert(ctx, &e); err != nil {
			l.logger.Warn("failed to record tx event", zap.String("signature", e.Signature), zap.Error(err))
		}
	}
	if e.Status == domain.TxStatusCommitted {
		l.publish(e)
	}
}

// validate enforces rent and lamport conservation over every staged change.
func (s *txState) validate() error {
	var before, after uint64
	var err error

	for _, key := range s.order {
		e := s.entries[key]
		if !e.dirty {
			continue
		}
		if e.base != nil {
			if before, err = protocol.CheckedAdd(before, e.base.Lamports); err != nil {
				return err
			}
		}
		if e.cur == nil {
			continue
		}

		// Zero-lamport system accounts are reaped.
		if e.cur.IsSystem() && e.cur.Lamports == 0 {
			e.cur = nil
			continue
		}

		size := 0
		if e.cur.State != nil {
			size = e.cur.State.Size()
		}
		if minimum := MinimumBalance(size); e.cur.Lamports < minimum {
			return protocol.Errorf(protocol.ErrInsufficientFundsForRent, "account %s holds %d lamports, minimum %d", key, e.cur.Lamports, minimum)
		}
		if after, err = protocol.CheckedAdd(after, e.cur.Lamports); err != nil {
			return err
		}
	}

	expected, err := protocol.CheckedAdd(before, s.minted)
	if err != nil {
		return err
	}
	if expected != after {
		return fmt.Errorf("%w: before %d + minted %d != after %d", errConservation, before, s.minted, after)
	}
	return nil
}

func (s *txState) load(key pda.Address) *entry {
	if e, ok := s.entries[key]; ok {
		return e
	}

	s.ledger.mu.RLock()
	committed := s.ledger.accounts[key]
	s.ledger.mu.RUnlock()

	e := &entry{base: committed.clone(), cur: committed.clone()}
	s.entries[key] = e
	s.order = append(s.order, key)
	return e
}

// Program returns the program the view executes as.
func (t *Tx) Program() pda.Address {
	return t.program
}

// Now returns the ledger timestamp fixed at the start of the instruction.
func (t *Tx) Now() int64 {
	return t.s.now
}

// CPI returns a view executing as program, sharing staged state and signers.
func (t *Tx) CPI(program pda.Address) *Tx {
	return &Tx{s: t.s, program: program}
}

// IsSigner reports whether key signed the instruction or was signed for by a program.
func (t *Tx) IsSigner(key pda.Address) bool {
	_, ok := t.s.signers[key]
	return ok
}

// RequireSigner returns ErrMissingSignature unless key signed.
func (t *Tx) RequireSigner(key pda.Address) error {
	if !t.IsSigner(key) {
		return protocol.Errorf(protocol.ErrMissingSignature, "%s", key)
	}
	return nil
}

// SignAs lets the executing program sign for one of its derived addresses. The
// address is recomputed from the seeds against the executing program.
func (t *Tx) SignAs(d pda.Derived) error {
	addr, err := pda.CreateProgramAddress(d.SignerSeeds(), t.program)
	if err != nil || addr != d.Address {
		return protocol.Errorf(protocol.ErrAddressMismatch, "program %s cannot sign for %s", ProgramName(t.program), d.Address)
	}
	t.s.signers[d.Address] = struct{}{}
	return nil
}

// IsWritable reports whether key was declared writable.
func (t *Tx) IsWritable(key pda.Address) bool {
	_, ok := t.s.writable[key]
	return ok
}

func (t *Tx) requireWritable(key pda.Address) error {
	if !t.IsWritable(key) {
		return protocol.Errorf(protocol.ErrAccountNotWritable, "%s", key)
	}
	return nil
}

// Get returns a copy of the staged account at key.
func (t *Tx) Get(key pda.Address) (*Account, bool) {
	e := t.s.load(key)
	if e.cur == nil {
		return nil, false
	}
	return e.cur.clone(), true
}

// HasState reports whether a program-owned account is staged at key. A plain
// lamport balance at key does not count: anyone can fund an address.
func (t *Tx) HasState(key pda.Address) bool {
	cur := t.s.load(key).cur
	return cur != nil && !cur.IsSystem()
}

// Put stages a modified account. Only the owning program may write it, and it
// must already exist.
func (t *Tx) Put(acct *Account) error {
	if err := t.requireWritable(acct.Key); err != nil {
		return err
	}
	e := t.s.load(acct.Key)
	if e.cur == nil {
		return protocol.Errorf(protocol.ErrRecordNotFound, "account %s", acct.Key)
	}
	if e.cur.Owner != t.program {
		return protocol.Errorf(protocol.ErrIllegalOwner, "program %s cannot write %s owned by %s", ProgramName(t.program), acct.Key, ProgramName(e.cur.Owner))
	}
	if acct.Owner != e.cur.Owner {
		return protocol.Errorf(protocol.ErrIllegalOwner, "account %s cannot change owner", acct.Key)
	}
	e.cur = acct.clone()
	e.dirty = true
	return nil
}

// Effects returns the effects staged so far.
func (t *Tx) Effects() []domain.Effect {
	out := make([]domain.Effect, len(t.s.effects))
	copy(out, t.s.effects)
	return out
}

// Emit appends an effect to the transaction log.
func (t *Tx) Emit(e domain.Effect) {
	t.s.effects = append(t.s.effects, e)
}

func (t *Tx) credit(key pda.Address, lamports uint64) error {
	if err := t.requireWritable(key); err != nil {
		return err
	}
	e := t.s.load(key)
	if e.cur == nil {
		e.cur = &Account{Key: key, Owner: SystemProgramID}
	}
	sum, err := protocol.CheckedAdd(e.cur.Lamports, lamports)
	if err != nil {
		return err
	}
	e.cur.Lamports = sum
	e.dirty = true
	return nil
}

func (t *Tx) mintLamports(key pda.Address, lamports uint64) error {
	if err := t.credit(key, lamports); err != nil {
		return err
	}
	minted, err := protocol.CheckedAdd(t.s.minted, lamports)
	if err != nil {
		return err
	}
	t.s.minted = minted
	t.Emit(domain.Effect{Type: domain.EffectLamportTransfer, To: key.String(), Amount: lamports})
	return nil
}

func dedupe(keys []pda.Address) []pda.Address {
	seen := make(map[pda.Address]struct{}, len(keys))
	out := make([]pda.Address, 0, len(keys))
	for _, k := range keys {
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}

func addressStrings(keys []pda.Address) []string {
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = k.String()
	}
	return out
}
