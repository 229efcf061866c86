package chain

import (
	"errors"
	"testing"

	"github.com/shaiso/Foreman/internal/domain"
)

func TestBuildClaimInstruction(t *testing.T) {
	ledger := NewOffline("claim-prog")

	proof := &domain.PaymentProof{
		Proof: "deadbeef",
		PublicSignals: domain.PublicSignals{
			MinNonce:       3,
			MaxNonce:       9,
			Amount:         1200,
			ManagerKey:     "mk",
			PaymentAccount: "acct-hash",
		},
	}

	instr, err := ledger.BuildClaimInstruction(proof)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if instr.Program != "claim-prog" || instr.Method != "claim" {
		t.Errorf("instruction target = %s/%s, want claim-prog/claim", instr.Program, instr.Method)
	}
	if instr.Args.MinNonce != 3 || instr.Args.MaxNonce != 9 || instr.Args.Amount != 1200 {
		t.Errorf("args = %+v, want nonces 3-9 amount 1200", instr.Args)
	}
}

func TestBuildClaimEmptyProof(t *testing.T) {
	ledger := NewOffline("claim-prog")
	_, err := ledger.BuildClaimInstruction(&domain.PaymentProof{Proof: "00"})
	if !errors.Is(err, ErrEmptyProof) {
		t.Fatalf("err = %v, want ErrEmptyProof", err)
	}
}

func TestBuildClaimNonHexProof(t *testing.T) {
	ledger := NewOffline("claim-prog")
	proof := &domain.PaymentProof{
		Proof:         "not hex!",
		PublicSignals: domain.PublicSignals{Amount: 1, MinNonce: 1, MaxNonce: 1},
	}
	if _, err := ledger.BuildClaimInstruction(proof); err == nil {
		t.Fatal("expected error for non-hex proof blob")
	}
}
