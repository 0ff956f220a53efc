// Package serialization saves and loads named tensors in the SafeTensors
// format, used to checkpoint BatchNorm layers (parameters and running
// averages).
//
//	Format Structure:
//	  [8 bytes: header size (uint64 LE)]
//	  [header: JSON, tensor name -> {dtype, shape, data_offsets}, plus "__metadata__"]
//	  [tensor data: raw little-endian bytes, tensors in name order]
//
// All dtypes of the tensor package are supported, including F16 and BF16.
//
// Example usage:
//
//	if err := serialization.Save("bn.safetensors", bn.StateDict(), nil); err != nil {
//	    return err
//	}
//	stateDict, metadata, err := serialization.Load("bn.safetensors")
//	if err != nil {
//	    return err
//	}
//	err = bn.LoadStateDict(stateDict)
package serialization
