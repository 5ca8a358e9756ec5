// Package slots manages the four candidate positions of an identity.
//
// Selections start as local drafts and become hearts only on Commit, which
// assembles all four positions and sends them to the relay in one
// compare-and-swap request. Withdraw re-submits the set without one target;
// unchanged positions are re-sent byte for byte so their inbox items and
// claims survive.
package slots
