package particle

import (
	"encoding/binary"

	"github.com/google/uuid"
)

// IDSource issues deterministic handles: the same seed yields the same ID sequence
type IDSource struct {
	namespace uuid.UUID
	next      uint64
}

// NewIDSource creates a source namespaced by seed
func NewIDSource(seed uint64) *IDSource {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], seed)
	return &IDSource{
		namespace: uuid.NewSHA1(uuid.NameSpaceOID, buf[:]),
	}
}

// Next returns the next handle in sequence
func (s *IDSource) Next() ID {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], s.next)
	s.next++
	return ID(uuid.NewSHA1(s.namespace, buf[:]).String())
}

// Issued returns the number of handles issued so far
func (s *IDSource) Issued() uint64 {
	return s.next
}
