package chain

import "errors"

var (
	// ErrInvalidBlock is returned when a block fails self-verification
	// or fork-relative verification and cannot be added to the store.
	ErrInvalidBlock = errors.New("chain: invalid block")

	// ErrInconsistentFork is returned by BalanceOnFork when replaying a
	// fork's transactions would drive some participant's balance
	// negative.
	ErrInconsistentFork = errors.New("chain: inconsistent fork")

	// ErrBlockNotFound is returned when a referenced header hash is not
	// present in the store.
	ErrBlockNotFound = errors.New("chain: block not found")

	// ErrTransactionNotFound is returned when a requested transaction
	// proof cannot be located on the given fork.
	ErrTransactionNotFound = errors.New("chain: transaction not found on fork")
)
