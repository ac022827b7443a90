// Package serialization exports model state dicts in the SafeTensors format.
//
//	Format Structure:
//	  [8 bytes: Header Size (uint64 LE)]
//	  [Header: JSON, tensor name -> {dtype, shape, data_offsets}, plus __metadata__]
//	  [Tensor data: raw little-endian bytes, tensors in name order]
//
// The writer records a SHA-256 digest of the data section in the metadata under
// ChecksumKey; the reader verifies it when present.
//
// Example usage:
//
//	state := nn.StateDict[Backend](model)
//	if err := serialization.WriteSafeTensors("pruned.safetensors", state, map[string]string{
//	    "run_id": runID,
//	}); err != nil {
//	    log.Fatal(err)
//	}
//
//	tensors, metadata, err := serialization.ReadSafeTensors("pruned.safetensors")
package serialization
