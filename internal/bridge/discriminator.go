package bridge

import "crypto/sha256"

// EventDiscriminator returns the 8-byte tag the program prefixes to an
// emitted event payload: the first 8 bytes of sha256("event:" + name).
func EventDiscriminator(name string) [8]byte {
	sum := sha256.Sum256([]byte("event:" + name))
	var disc [8]byte
	copy(disc[:], sum[:8])
	return disc
}

// InstructionDiscriminator returns the 8-byte tag identifying a program
// instruction: the first 8 bytes of sha256("global:" + name).
func InstructionDiscriminator(name string) [8]byte {
	sum := sha256.Sum256([]byte("global:" + name))
	var disc [8]byte
	copy(disc[:], sum[:8])
	return disc
}
