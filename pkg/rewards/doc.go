// Package rewards implements coin awards and achievements for learner
// engagement.
//
// Awards fire after login and progress events. Callers treat them as
// best-effort: a failed award is logged and the triggering flow continues.
package rewards
