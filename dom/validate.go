package dom

import (
	"github.com/go-errors/errors"
)

// Validate replay the operations on a scratch replica and collect the violations,
// every returned error is a *errors.Error wrapping a *Violation.
func Validate(ops []Operation) []error {
	return ValidateOn(NewReplica(), ops)
}

// ValidateOn replay the operations on a copy of the replica's elements
func ValidateOn(replica *Replica, ops []Operation) []error {
	scratch := &Replica{nodes: map[int]*Node{}}
	replica.mutex.RLock()
	for id, node := range replica.nodes {
		clone := node.clone()
		scratch.nodes[id] = &clone
	}
	replica.mutex.RUnlock()

	errs := []error{}
	for i, op := range ops {
		if err := scratch.apply(op); err != nil {
			errs = append(errs, errors.Wrap(&Violation{Index: i, Op: op, Err: err}, 1))
		}
	}
	return errs
}
