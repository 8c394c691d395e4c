// Package serialization persists network checkpoints in the .born format.
//
// A checkpoint holds everything needed to resume training: the network
// configuration, the parameter arena, non-trainable layer state (batch
// normalization statistics), optional updater accumulators, the iteration
// counter and the model identifier.
//
//	Format Structure (v2):
//	  [0x00-0x03: Magic "BORN"]
//	  [0x04-0x07: Version (uint32 LE)]
//	  [0x08-0x0B: Flags (uint32 LE)]
//	  [0x0C-0x0F: Reserved]
//	  [0x10-0x17: Header size (uint64 LE)]
//	  [0x18-0x1F: Data size (uint64 LE)]
//	  [0x20-0x3F: SHA-256 of the data section]
//	  [Header: JSON]
//	  [Padding to 64 bytes]
//	  [Data: little-endian float64 tensors]
//
// Example usage:
//
//	if err := serialization.SaveFile("model.born", ckpt); err != nil {
//	    log.Fatal(err)
//	}
//
//	ckpt, err := serialization.LoadFile("model.born")
//	if err != nil {
//	    log.Fatal(err)
//	}
package serialization
