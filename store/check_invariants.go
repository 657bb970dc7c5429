//go:build !debug

package store

func (s *Store) checkInvariants() {}
