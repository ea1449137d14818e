// Package serialization writes and inspects blob dumps in SafeTensors format.
//
// Layout:
//
//	[8 bytes: header size (uint64 LE)]
//	[header: JSON object, name -> {dtype, shape, data_offsets}, plus "__metadata__"]
//	[tensor data: raw little-endian bytes, in name order]
//
// Blobs contribute their data under their name and, when requested, their
// diff under name + ".grad".
//
// Example usage:
//
//	tensors := serialization.BlobTensors("output", top, true)
//	serialization.AddBlob(tensors, "loc1", locs[0], true)
//	if err := serialization.WriteSafeTensors("dump.safetensors", tensors, meta); err != nil {
//	    return err
//	}
//
//	hdr, err := serialization.ReadSafeTensorsHeader("dump.safetensors")
package serialization
