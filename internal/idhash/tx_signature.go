package idhash

import (
	"crypto/sha256"
	"fmt"
	"strings"

	"github.com/mr-tron/base58"
)

// ComputeTxSignature computes a deterministic transaction signature using SHA256.
// Formula: SHA256(program|instruction|signer1,signer2,...|slot|sequence)
// Returns base58-encoded hash.
func ComputeTxSignature(
	program string,
	instruction string,
	signers []string,
	slot uint64,
	sequence uint64,
) string {
	data := fmt.Sprintf("%s|%s|%s|%d|%d",
		program,
		instruction,
		strings.Join(signers, ","),
		slot,
		sequence,
	)

	hash := sha256.Sum256([]byte(data))
	return base58.Encode(hash[:])
}
