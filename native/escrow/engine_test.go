package escrow_test

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"math/big"
	"testing"

	"swapnet/core/events"
	"swapnet/core/state"
	"swapnet/native/auth"
	"swapnet/native/escrow"
	"swapnet/native/merkle"
	"swapnet/native/token"
	"swapnet/storage"
)

const tokenSym = "USDC"

var (
	maker    = testAddr(0x01)
	taker    = testAddr(0x02)
	stranger = testAddr(0x03)
	vault    = testAddr(0xAA)

	secret       = []byte("order-secret")
	hashedSecret = sha256.Sum256(secret)

	escrowAmount = big.NewInt(2_000_000)
	seedBalance  = big.NewInt(1_000_000_000)
)

func testAddr(b byte) [20]byte {
	var a [20]byte
	for i := range a {
		a[i] = b
	}
	return a
}

type ledgerEnv struct {
	t      *testing.T
	bank   *token.Bank
	ledger *escrow.Ledger
	now    uint64
	events []events.Event
}

func newLedgerEnv(t *testing.T) *ledgerEnv {
	t.Helper()
	manager := state.NewManager(storage.NewMemDB())
	bank := token.NewBank(manager, vault)
	scope := auth.NewCallScope(maker, taker, stranger, vault)
	ledger := escrow.NewLedger(manager, bank, scope, vault)

	env := &ledgerEnv{t: t, bank: bank, ledger: ledger}
	ledger.SetNowFunc(func() uint64 { return env.now })
	ledger.SetEmitter(env)

	for _, addr := range [][20]byte{maker, taker, stranger} {
		if err := bank.Mint(tokenSym, addr, seedBalance); err != nil {
			t.Fatalf("mint: %v", err)
		}
	}
	return env
}

func (env *ledgerEnv) Emit(evt events.Event) { env.events = append(env.events, evt) }

func (env *ledgerEnv) balance(addr [20]byte) *big.Int {
	env.t.Helper()
	bal, err := env.bank.Balance(tokenSym, addr)
	if err != nil {
		env.t.Fatalf("balance: %v", err)
	}
	return bal
}

func (env *ledgerEnv) approve(owner [20]byte, amount *big.Int) {
	env.t.Helper()
	if err := env.ledger.Approve(owner, amount); err != nil {
		env.t.Fatalf("approve: %v", err)
	}
}

func sourceParams() escrow.SourceParams {
	return escrow.SourceParams{
		Maker:                   maker,
		Recipient:               taker,
		HashedSecret:            hashedSecret,
		Token:                   tokenSym,
		Amount:                  new(big.Int).Set(escrowAmount),
		WithdrawalStart:         100,
		PublicWithdrawalStart:   200,
		CancellationStart:       300,
		PublicCancellationStart: 400,
		TotalParts:              1,
	}
}

func destinationParams() escrow.DestinationParams {
	return escrow.DestinationParams{
		Recipient:             maker,
		HashedSecret:          hashedSecret,
		Token:                 tokenSym,
		Amount:                new(big.Int).Set(escrowAmount),
		WithdrawalStart:       100,
		PublicWithdrawalStart: 200,
		CancellationStart:     300,
		TotalParts:            1,
	}
}

// createSource funds a source escrow through the allowance path with taker as
// the creating caller, mirroring a resolver relaying a maker's order.
func (env *ledgerEnv) createSource(p escrow.SourceParams) [32]byte {
	env.t.Helper()
	env.approve(p.Maker, p.Amount)
	id, err := env.ledger.CreateSource(taker, p)
	if err != nil {
		env.t.Fatalf("create source: %v", err)
	}
	return id
}

func TestCreateSourceMovesFundsAndDebitsAllowance(t *testing.T) {
	env := newLedgerEnv(t)
	env.approve(maker, big.NewInt(5_000_000))

	id, err := env.ledger.CreateSource(taker, sourceParams())
	if err != nil {
		t.Fatalf("create source: %v", err)
	}

	deposit := escrow.DepositAmount()
	wantMaker := new(big.Int).Sub(seedBalance, escrowAmount)
	wantTaker := new(big.Int).Sub(seedBalance, deposit)
	wantVault := new(big.Int).Add(escrowAmount, deposit)
	if env.balance(maker).Cmp(wantMaker) != 0 {
		t.Fatalf("maker balance = %s, want %s", env.balance(maker), wantMaker)
	}
	if env.balance(taker).Cmp(wantTaker) != 0 {
		t.Fatalf("taker balance = %s, want %s", env.balance(taker), wantTaker)
	}
	if env.balance(vault).Cmp(wantVault) != 0 {
		t.Fatalf("vault balance = %s, want %s", env.balance(vault), wantVault)
	}

	remaining, err := env.ledger.Allowance(maker)
	if err != nil {
		t.Fatalf("allowance: %v", err)
	}
	if remaining.Cmp(big.NewInt(3_000_000)) != 0 {
		t.Fatalf("allowance = %s, want 3000000", remaining)
	}

	esc, err := env.ledger.GetSource(id)
	if err != nil {
		t.Fatalf("get source: %v", err)
	}
	if esc.Creator != maker || esc.Recipient != taker {
		t.Fatalf("unexpected parties: %+v", esc)
	}
	if esc.Kind != escrow.KindSource || esc.IsPartialFill {
		t.Fatalf("unexpected shape: kind=%s partial=%v", esc.Kind, esc.IsPartialFill)
	}
	if esc.PublicCancellationStart != 400 {
		t.Fatalf("public cancellation = %d, want 400", esc.PublicCancellationStart)
	}
	if esc.SecurityDeposit.Cmp(deposit) != 0 {
		t.Fatalf("deposit = %s, want %s", esc.SecurityDeposit, deposit)
	}
}

func TestCreateSourceDerivesPublicCancellation(t *testing.T) {
	env := newLedgerEnv(t)
	p := sourceParams()
	p.PublicCancellationStart = 0
	id := env.createSource(p)

	esc, err := env.ledger.Get(id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	want := p.CancellationStart + escrow.PublicCancellationOffset
	if esc.PublicCancellationStart != want {
		t.Fatalf("public cancellation = %d, want %d", esc.PublicCancellationStart, want)
	}
}

func TestCreateSourceValidation(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*escrow.SourceParams)
		wantErr error
	}{
		{"zero amount", func(p *escrow.SourceParams) { p.Amount = big.NewInt(0) }, escrow.ErrInvalidAmount},
		{"nil amount", func(p *escrow.SourceParams) { p.Amount = nil }, escrow.ErrInvalidAmount},
		{"oversized amount", func(p *escrow.SourceParams) { p.Amount = new(big.Int).Lsh(big.NewInt(1), 127) }, escrow.ErrInvalidAmount},
		{"withdrawal after public withdrawal", func(p *escrow.SourceParams) { p.WithdrawalStart = 250 }, escrow.ErrInvalidTimeWindow},
		{"public withdrawal after cancellation", func(p *escrow.SourceParams) { p.PublicWithdrawalStart = 350 }, escrow.ErrInvalidTimeWindow},
		{"cancellation after public cancellation", func(p *escrow.SourceParams) { p.CancellationStart = 450 }, escrow.ErrInvalidTimeWindow},
		{"zero parts", func(p *escrow.SourceParams) { p.TotalParts = 0 }, escrow.ErrInvalidPartCount},
		{"part index out of range", func(p *escrow.SourceParams) { p.TotalParts = 4; p.PartIndex = 4 }, escrow.ErrInvalidPartIndex},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			env := newLedgerEnv(t)
			env.approve(maker, big.NewInt(10_000_000))
			p := sourceParams()
			tc.mutate(&p)
			if _, err := env.ledger.CreateSource(taker, p); !errors.Is(err, tc.wantErr) {
				t.Fatalf("got %v, want %v", err, tc.wantErr)
			}
			if env.balance(vault).Sign() != 0 {
				t.Fatalf("rejected creation moved funds into vault")
			}
		})
	}
}

func TestCreateSourceInsufficientAllowance(t *testing.T) {
	env := newLedgerEnv(t)
	env.approve(maker, big.NewInt(1_999_999))

	if _, err := env.ledger.CreateSource(taker, sourceParams()); !errors.Is(err, escrow.ErrInsufficientAllowance) {
		t.Fatalf("got %v, want ErrInsufficientAllowance", err)
	}
	remaining, _ := env.ledger.Allowance(maker)
	if remaining.Cmp(big.NewInt(1_999_999)) != 0 {
		t.Fatalf("failed creation debited allowance: %s", remaining)
	}
	if env.balance(vault).Sign() != 0 {
		t.Fatalf("failed creation moved funds")
	}
}

func TestCreateSourceInsufficientFunds(t *testing.T) {
	env := newLedgerEnv(t)
	p := sourceParams()
	p.Amount = new(big.Int).Add(seedBalance, big.NewInt(1))
	env.approve(maker, p.Amount)

	if _, err := env.ledger.CreateSource(taker, p); !errors.Is(err, escrow.ErrInsufficientFunds) {
		t.Fatalf("got %v, want ErrInsufficientFunds", err)
	}
	remaining, _ := env.ledger.Allowance(maker)
	if remaining.Cmp(p.Amount) != 0 {
		t.Fatalf("failed creation debited allowance: %s", remaining)
	}
}

func TestCreateDestinationMovesFunds(t *testing.T) {
	env := newLedgerEnv(t)
	id, err := env.ledger.CreateDestination(taker, destinationParams())
	if err != nil {
		t.Fatalf("create destination: %v", err)
	}

	deposit := escrow.DepositAmount()
	wantTaker := new(big.Int).Sub(seedBalance, new(big.Int).Add(escrowAmount, deposit))
	if env.balance(taker).Cmp(wantTaker) != 0 {
		t.Fatalf("taker balance = %s, want %s", env.balance(taker), wantTaker)
	}

	esc, err := env.ledger.GetDestination(id)
	if err != nil {
		t.Fatalf("get destination: %v", err)
	}
	if esc.Creator != taker || esc.Recipient != maker {
		t.Fatalf("unexpected parties: %+v", esc)
	}
	if esc.PublicCancellationStart != 0 {
		t.Fatalf("destination records carry no public cancellation boundary")
	}
}

func TestCreateDestinationInsufficientFunds(t *testing.T) {
	env := newLedgerEnv(t)
	p := destinationParams()
	p.Amount = new(big.Int).Set(seedBalance) // deposit no longer fits

	if _, err := env.ledger.CreateDestination(taker, p); !errors.Is(err, escrow.ErrInsufficientFunds) {
		t.Fatalf("got %v, want ErrInsufficientFunds", err)
	}
}

func TestWithdrawPrivateWindowRecipientOnly(t *testing.T) {
	env := newLedgerEnv(t)
	id := env.createSource(sourceParams())
	env.now = 150

	if err := env.ledger.Withdraw(stranger, id, secret); !errors.Is(err, escrow.ErrUnauthorized) {
		t.Fatalf("stranger in private window: got %v, want ErrUnauthorized", err)
	}

	takerBefore := env.balance(taker)
	if err := env.ledger.Withdraw(taker, id, secret); err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	gained := new(big.Int).Sub(env.balance(taker), takerBefore)
	want := new(big.Int).Add(escrowAmount, escrow.DepositAmount())
	if gained.Cmp(want) != 0 {
		t.Fatalf("recipient gained %s, want %s", gained, want)
	}
	if env.balance(vault).Sign() != 0 {
		t.Fatalf("vault not drained: %s", env.balance(vault))
	}

	if err := env.ledger.Withdraw(taker, id, secret); !errors.Is(err, escrow.ErrAlreadyWithdrawn) {
		t.Fatalf("second withdraw: got %v, want ErrAlreadyWithdrawn", err)
	}
}

func TestWithdrawPublicWindowAnyCaller(t *testing.T) {
	env := newLedgerEnv(t)
	id := env.createSource(sourceParams())
	env.now = 250

	takerBefore := env.balance(taker)
	strangerBefore := env.balance(stranger)
	if err := env.ledger.Withdraw(stranger, id, secret); err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if gained := new(big.Int).Sub(env.balance(taker), takerBefore); gained.Cmp(escrowAmount) != 0 {
		t.Fatalf("recipient gained %s, want %s", gained, escrowAmount)
	}
	if gained := new(big.Int).Sub(env.balance(stranger), strangerBefore); gained.Cmp(escrow.DepositAmount()) != 0 {
		t.Fatalf("executor gained %s, want deposit", gained)
	}
}

func TestWithdrawWrongSecret(t *testing.T) {
	env := newLedgerEnv(t)
	id := env.createSource(sourceParams())
	env.now = 250

	if err := env.ledger.Withdraw(taker, id, []byte("not-the-secret")); !errors.Is(err, escrow.ErrInvalidSecret) {
		t.Fatalf("got %v, want ErrInvalidSecret", err)
	}
}

func TestWithdrawOutsideWindow(t *testing.T) {
	env := newLedgerEnv(t)
	id := env.createSource(sourceParams())

	env.now = 50
	if err := env.ledger.Withdraw(taker, id, secret); !errors.Is(err, escrow.ErrNotYetOpen) {
		t.Fatalf("before window: got %v, want ErrNotYetOpen", err)
	}
	env.now = 300
	if err := env.ledger.Withdraw(taker, id, secret); !errors.Is(err, escrow.ErrWindowClosed) {
		t.Fatalf("at cancellation start: got %v, want ErrWindowClosed", err)
	}
}

func TestDestinationPrivateWindowAllowsCreator(t *testing.T) {
	env := newLedgerEnv(t)
	id, err := env.ledger.CreateDestination(taker, destinationParams())
	if err != nil {
		t.Fatalf("create destination: %v", err)
	}
	env.now = 150

	if err := env.ledger.Withdraw(stranger, id, secret); !errors.Is(err, escrow.ErrUnauthorized) {
		t.Fatalf("stranger: got %v, want ErrUnauthorized", err)
	}

	makerBefore := env.balance(maker)
	if err := env.ledger.Withdraw(taker, id, secret); err != nil {
		t.Fatalf("creator withdraw: %v", err)
	}
	// Principal routes to the contractual recipient even when the creator
	// executes; the creator only earns the deposit back.
	if gained := new(big.Int).Sub(env.balance(maker), makerBefore); gained.Cmp(escrowAmount) != 0 {
		t.Fatalf("recipient gained %s, want %s", gained, escrowAmount)
	}
}

func TestCancelLifecycle(t *testing.T) {
	env := newLedgerEnv(t)
	id := env.createSource(sourceParams())

	env.now = 250
	if err := env.ledger.Cancel(maker, id); !errors.Is(err, escrow.ErrNotYetOpen) {
		t.Fatalf("before cancellation window: got %v, want ErrNotYetOpen", err)
	}

	env.now = 350
	if err := env.ledger.Cancel(stranger, id); !errors.Is(err, escrow.ErrUnauthorized) {
		t.Fatalf("non-creator: got %v, want ErrUnauthorized", err)
	}

	makerBefore := env.balance(maker)
	if err := env.ledger.Cancel(maker, id); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	gained := new(big.Int).Sub(env.balance(maker), makerBefore)
	want := new(big.Int).Add(escrowAmount, escrow.DepositAmount())
	if gained.Cmp(want) != 0 {
		t.Fatalf("creator recovered %s, want %s", gained, want)
	}

	if err := env.ledger.Withdraw(taker, id, secret); !errors.Is(err, escrow.ErrAlreadyCancelled) {
		t.Fatalf("withdraw after cancel: got %v, want ErrAlreadyCancelled", err)
	}
	if err := env.ledger.Cancel(maker, id); !errors.Is(err, escrow.ErrAlreadyCancelled) {
		t.Fatalf("double cancel: got %v, want ErrAlreadyCancelled", err)
	}
}

func TestSourceCancelRejectedAfterPublicBoundary(t *testing.T) {
	env := newLedgerEnv(t)
	id := env.createSource(sourceParams())

	env.now = 400
	if err := env.ledger.Cancel(maker, id); !errors.Is(err, escrow.ErrWindowClosed) {
		t.Fatalf("at public boundary: got %v, want ErrWindowClosed", err)
	}
	env.now = 10_000
	if err := env.ledger.Cancel(maker, id); !errors.Is(err, escrow.ErrWindowClosed) {
		t.Fatalf("long after boundary: got %v, want ErrWindowClosed", err)
	}
}

func TestDestinationCancelHasNoUpperBoundary(t *testing.T) {
	env := newLedgerEnv(t)
	id, err := env.ledger.CreateDestination(taker, destinationParams())
	if err != nil {
		t.Fatalf("create destination: %v", err)
	}
	env.now = 300 + 10*365*24*3600
	if err := env.ledger.Cancel(taker, id); err != nil {
		t.Fatalf("late destination cancel: %v", err)
	}
}

func TestRescueSource(t *testing.T) {
	env := newLedgerEnv(t)
	id := env.createSource(sourceParams())
	boundary := uint64(400) + escrow.RescueDelay

	env.now = boundary - 1
	if err := env.ledger.Rescue(taker, id); !errors.Is(err, escrow.ErrNotYetOpen) {
		t.Fatalf("before boundary: got %v, want ErrNotYetOpen", err)
	}

	env.now = boundary
	if err := env.ledger.Rescue(stranger, id); !errors.Is(err, escrow.ErrUnauthorized) {
		t.Fatalf("non-recipient: got %v, want ErrUnauthorized", err)
	}

	takerBefore := env.balance(taker)
	makerBefore := env.balance(maker)
	if err := env.ledger.Rescue(taker, id); err != nil {
		t.Fatalf("rescue: %v", err)
	}
	if gained := new(big.Int).Sub(env.balance(taker), takerBefore); gained.Cmp(escrowAmount) != 0 {
		t.Fatalf("rescuer gained %s, want %s", gained, escrowAmount)
	}
	if gained := new(big.Int).Sub(env.balance(maker), makerBefore); gained.Cmp(escrow.DepositAmount()) != 0 {
		t.Fatalf("creator recovered %s, want deposit", gained)
	}
	if err := env.ledger.Rescue(taker, id); !errors.Is(err, escrow.ErrAlreadyWithdrawn) {
		t.Fatalf("double rescue: got %v, want ErrAlreadyWithdrawn", err)
	}
}

func TestRescueDestination(t *testing.T) {
	env := newLedgerEnv(t)
	id, err := env.ledger.CreateDestination(taker, destinationParams())
	if err != nil {
		t.Fatalf("create destination: %v", err)
	}
	boundary := uint64(300) + escrow.RescueDelay

	env.now = boundary - 1
	if err := env.ledger.Rescue(taker, id); !errors.Is(err, escrow.ErrNotYetOpen) {
		t.Fatalf("before boundary: got %v, want ErrNotYetOpen", err)
	}
	env.now = boundary
	if err := env.ledger.Rescue(maker, id); !errors.Is(err, escrow.ErrUnauthorized) {
		t.Fatalf("recipient may not rescue a destination record: got %v", err)
	}
	if err := env.ledger.Rescue(taker, id); err != nil {
		t.Fatalf("creator rescue: %v", err)
	}
}

func TestPartialFillReservation(t *testing.T) {
	env := newLedgerEnv(t)
	root := sha256.Sum256([]byte("commitment-root"))

	p := sourceParams()
	p.HashedSecret = root
	p.TotalParts = 4
	p.PartIndex = 0
	env.createSource(p)

	used, err := env.ledger.PartUsed(root, 0)
	if err != nil {
		t.Fatalf("part used: %v", err)
	}
	if !used {
		t.Fatalf("part 0 not reserved")
	}

	env.approve(maker, escrowAmount)
	if _, err := env.ledger.CreateSource(taker, p); !errors.Is(err, escrow.ErrPartAlreadyUsed) {
		t.Fatalf("reused part: got %v, want ErrPartAlreadyUsed", err)
	}

	p.PartIndex = 1
	env.createSource(p)
	count, err := env.ledger.PartialFillCount(root)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 2 {
		t.Fatalf("count = %d, want 2", count)
	}
}

func TestWithdrawWithProof(t *testing.T) {
	env := newLedgerEnv(t)

	secrets := make([][]byte, 4)
	leaves := make([][32]byte, 4)
	for i := range secrets {
		secrets[i] = []byte(fmt.Sprintf("part-secret-%d", i))
		leaves[i] = merkle.Leaf(uint64(i), sha256.Sum256(secrets[i]))
	}
	tree := merkle.NewTree(leaves)

	p := sourceParams()
	p.HashedSecret = tree.Root()
	p.TotalParts = 4
	p.PartIndex = 2
	id := env.createSource(p)
	env.now = 150

	if err := env.ledger.Withdraw(taker, id, secrets[2]); !errors.Is(err, escrow.ErrInvalidSecret) {
		t.Fatalf("plain withdraw against a commitment root: got %v, want ErrInvalidSecret", err)
	}
	if err := env.ledger.WithdrawWithProof(taker, id, secrets[2], tree.Proof(1)); !errors.Is(err, escrow.ErrInvalidProof) {
		t.Fatalf("mismatched proof: got %v, want ErrInvalidProof", err)
	}
	if err := env.ledger.WithdrawWithProof(taker, id, secrets[1], tree.Proof(2)); !errors.Is(err, escrow.ErrInvalidProof) {
		t.Fatalf("mismatched secret: got %v, want ErrInvalidProof", err)
	}

	takerBefore := env.balance(taker)
	if err := env.ledger.WithdrawWithProof(taker, id, secrets[2], tree.Proof(2)); err != nil {
		t.Fatalf("withdraw with proof: %v", err)
	}
	gained := new(big.Int).Sub(env.balance(taker), takerBefore)
	want := new(big.Int).Add(escrowAmount, escrow.DepositAmount())
	if gained.Cmp(want) != 0 {
		t.Fatalf("recipient gained %s, want %s", gained, want)
	}
}

func TestWithdrawWithProofOnFullFill(t *testing.T) {
	env := newLedgerEnv(t)
	id := env.createSource(sourceParams())
	env.now = 150

	if err := env.ledger.WithdrawWithProof(taker, id, secret, nil); !errors.Is(err, escrow.ErrNotPartialFill) {
		t.Fatalf("got %v, want ErrNotPartialFill", err)
	}
}

func TestQueries(t *testing.T) {
	env := newLedgerEnv(t)
	srcID := env.createSource(sourceParams())
	dstID, err := env.ledger.CreateDestination(maker, destinationParams())
	if err != nil {
		t.Fatalf("create destination: %v", err)
	}

	if srcID == dstID {
		t.Fatalf("identifiers must be unique")
	}
	for _, id := range [][32]byte{srcID, dstID} {
		ok, err := env.ledger.IsEscrow(id)
		if err != nil {
			t.Fatalf("is escrow: %v", err)
		}
		if !ok {
			t.Fatalf("known record %x not indexed", id)
		}
	}
	ok, err := env.ledger.IsEscrow([32]byte{0xFF})
	if err != nil {
		t.Fatalf("is escrow: %v", err)
	}
	if ok {
		t.Fatalf("unknown identifier reported as escrow")
	}

	if _, err := env.ledger.Get([32]byte{0xFF}); !errors.Is(err, escrow.ErrNotFound) {
		t.Fatalf("unknown id: got %v, want ErrNotFound", err)
	}
	if _, err := env.ledger.GetSource(dstID); err == nil {
		t.Fatalf("destination record returned from GetSource")
	}
	if _, err := env.ledger.GetDestination(srcID); err == nil {
		t.Fatalf("source record returned from GetDestination")
	}

	ids, err := env.ledger.UserEscrows(maker)
	if err != nil {
		t.Fatalf("user escrows: %v", err)
	}
	if len(ids) != 2 || ids[0] != srcID || ids[1] != dstID {
		t.Fatalf("maker index mismatch: %x", ids)
	}
	none, err := env.ledger.UserEscrows(stranger)
	if err != nil {
		t.Fatalf("user escrows: %v", err)
	}
	if len(none) != 0 {
		t.Fatalf("stranger has %d records", len(none))
	}
}

func TestUnauthorizedPrincipalRejected(t *testing.T) {
	env := newLedgerEnv(t)
	id := env.createSource(sourceParams())
	env.now = 250

	outsider := testAddr(0x99) // never granted in the call scope
	if _, err := env.ledger.CreateSource(outsider, sourceParams()); !errors.Is(err, escrow.ErrUnauthorized) {
		t.Fatalf("create: got %v, want ErrUnauthorized", err)
	}
	if err := env.ledger.Withdraw(outsider, id, secret); !errors.Is(err, escrow.ErrUnauthorized) {
		t.Fatalf("withdraw: got %v, want ErrUnauthorized", err)
	}
	if err := env.ledger.Cancel(outsider, id); !errors.Is(err, escrow.ErrUnauthorized) {
		t.Fatalf("cancel: got %v, want ErrUnauthorized", err)
	}
}

func TestLifecycleEventsEmitted(t *testing.T) {
	env := newLedgerEnv(t)
	id := env.createSource(sourceParams())
	env.now = 150
	if err := env.ledger.Withdraw(taker, id, secret); err != nil {
		t.Fatalf("withdraw: %v", err)
	}

	if len(env.events) != 2 {
		t.Fatalf("emitted %d events, want 2", len(env.events))
	}
	if env.events[0].EventType() != escrow.EventTypeCreated {
		t.Fatalf("first event = %s, want %s", env.events[0].EventType(), escrow.EventTypeCreated)
	}
	if env.events[1].EventType() != escrow.EventTypeWithdrawn {
		t.Fatalf("second event = %s, want %s", env.events[1].EventType(), escrow.EventTypeWithdrawn)
	}
}
