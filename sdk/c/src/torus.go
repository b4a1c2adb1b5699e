// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause
//
// C exports for the torus session layer. Build with
//
//	go build -buildmode=c-shared -o libtorus.so ./sdk/c/src

package main

/*
#cgo CFLAGS: -I${SRCDIR}/../include -DTORUS_NO_PROTOTYPES
#include <stdlib.h>
#include "torus.h"
*/
import "C"

import (
	"unsafe"

	"github.com/luxfi/torus/ffi"
)

var registry = ffi.NewRegistry()

func main() {}

func toC(res ffi.Result) C.torus_result {
	var out C.torus_result
	out.code = C.int32_t(res.Code)
	if !res.OK() {
		out.kind = C.CString(res.Kind)
		out.message = C.CString(res.Message)
	}
	return out
}

func nullOut(name string) C.torus_result {
	return toC(ffi.Result{Code: ffi.CodeParameter, Kind: ffi.CodeParameter.String(), Message: name + " is NULL"})
}

func encoding(bits, padding C.int32_t) ffi.EncodingConfig {
	return ffi.EncodingConfig{CleartextBits: int(bits), PaddingBits: int(padding)}
}

// setHandle stores h in out on success.
func setHandle(out *C.torus_handle, h ffi.Handle, res ffi.Result) C.torus_result {
	if res.OK() {
		*out = C.torus_handle(h)
	}
	return toC(res)
}

//export torus_result_free
func torus_result_free(res *C.torus_result) {
	if res == nil {
		return
	}
	C.free(unsafe.Pointer(res.kind))
	C.free(unsafe.Pointer(res.message))
	res.kind, res.message = nil, nil
}

//export torus_bytes_free
func torus_bytes_free(data unsafe.Pointer) {
	C.free(data)
}

//export torus_free
func torus_free(h C.torus_handle) C.torus_result {
	return toC(registry.Free(ffi.Handle(h)))
}

// ========== Key Generator ==========

//export torus_keygen_new
func torus_keygen_new(dimension C.uint64_t, log2StdDev, baseLog, level C.int32_t, out *C.torus_handle) C.torus_result {
	if out == nil {
		return nullOut("out")
	}
	h, res := registry.KeyGeneratorNew(ffi.SecurityParams{
		Dimension:  int(dimension),
		Log2StdDev: int(log2StdDev),
	}, int(baseLog), int(level))
	return setHandle(out, h, res)
}

//export torus_keygen_preset
func torus_keygen_preset(name *C.char, out *C.torus_handle) C.torus_result {
	if name == nil {
		return nullOut("name")
	}
	if out == nil {
		return nullOut("out")
	}
	h, res := registry.KeyGeneratorFromPreset(C.GoString(name))
	return setHandle(out, h, res)
}

//export torus_keygen_generate
func torus_keygen_generate(kg C.torus_handle, sk, pk *C.torus_handle) C.torus_result {
	if sk == nil || pk == nil {
		return nullOut("sk or pk")
	}
	s, p, res := registry.KeyGeneratorGenerate(ffi.Handle(kg))
	if res.OK() {
		*sk, *pk = C.torus_handle(s), C.torus_handle(p)
	}
	return toC(res)
}

//export torus_keygen_generate_only_sk
func torus_keygen_generate_only_sk(kg C.torus_handle, sk *C.torus_handle) C.torus_result {
	if sk == nil {
		return nullOut("sk")
	}
	h, res := registry.KeyGeneratorGenerateOnlySK(ffi.Handle(kg))
	return setHandle(sk, h, res)
}

//export torus_keygen_generate_with_cache
func torus_keygen_generate_with_cache(kg C.torus_handle, path *C.char, sk, pk *C.torus_handle) C.torus_result {
	if sk == nil || pk == nil {
		return nullOut("sk or pk")
	}
	root := ""
	if path != nil {
		root = C.GoString(path)
	}
	s, p, res := registry.KeyGeneratorGenerateWithCache(ffi.Handle(kg), root)
	if res.OK() {
		*sk, *pk = C.torus_handle(s), C.torus_handle(p)
	}
	return toC(res)
}

// ========== Encryptor / Decryptor ==========

//export torus_encryptor_new
func torus_encryptor_new(sk C.torus_handle, bits, padding C.int32_t, out *C.torus_handle) C.torus_result {
	if out == nil {
		return nullOut("out")
	}
	h, res := registry.EncryptorNew(ffi.Handle(sk), encoding(bits, padding))
	return setHandle(out, h, res)
}

//export torus_encrypt
func torus_encrypt(enc C.torus_handle, m C.uint64_t, out *C.torus_handle) C.torus_result {
	if out == nil {
		return nullOut("out")
	}
	h, res := registry.Encrypt(ffi.Handle(enc), uint64(m))
	return setHandle(out, h, res)
}

//export torus_decryptor_new
func torus_decryptor_new(sk C.torus_handle, out *C.torus_handle) C.torus_result {
	if out == nil {
		return nullOut("out")
	}
	h, res := registry.DecryptorNew(ffi.Handle(sk))
	return setHandle(out, h, res)
}

//export torus_decrypt
func torus_decrypt(dec, ct C.torus_handle, out *C.uint64_t) C.torus_result {
	if out == nil {
		return nullOut("out")
	}
	m, res := registry.Decrypt(ffi.Handle(dec), ffi.Handle(ct))
	if res.OK() {
		*out = C.uint64_t(m)
	}
	return toC(res)
}

// ========== Evaluator ==========

//export torus_evaluator_new_levelled
func torus_evaluator_new_levelled(bits, padding C.int32_t, out *C.torus_handle) C.torus_result {
	if out == nil {
		return nullOut("out")
	}
	h, res := registry.EvaluatorNewLevelled(encoding(bits, padding))
	return setHandle(out, h, res)
}

//export torus_evaluator_new
func torus_evaluator_new(pk C.torus_handle, bits, padding C.int32_t, out *C.torus_handle) C.torus_result {
	if out == nil {
		return nullOut("out")
	}
	h, res := registry.EvaluatorNew(ffi.Handle(pk), encoding(bits, padding))
	return setHandle(out, h, res)
}

//export torus_add
func torus_add(eval, a, b C.torus_handle, out *C.torus_handle) C.torus_result {
	if out == nil {
		return nullOut("out")
	}
	h, res := registry.Add(ffi.Handle(eval), ffi.Handle(a), ffi.Handle(b))
	return setHandle(out, h, res)
}

//export torus_add_inplace
func torus_add_inplace(eval, a, b C.torus_handle) C.torus_result {
	return toC(registry.AddInplace(ffi.Handle(eval), ffi.Handle(a), ffi.Handle(b)))
}

//export torus_add_scalar
func torus_add_scalar(eval, a C.torus_handle, c C.uint64_t, out *C.torus_handle) C.torus_result {
	if out == nil {
		return nullOut("out")
	}
	h, res := registry.AddScalar(ffi.Handle(eval), ffi.Handle(a), uint64(c))
	return setHandle(out, h, res)
}

//export torus_add_scalar_inplace
func torus_add_scalar_inplace(eval, a C.torus_handle, c C.uint64_t) C.torus_result {
	return toC(registry.AddScalarInplace(ffi.Handle(eval), ffi.Handle(a), uint64(c)))
}

//export torus_mul_scalar
func torus_mul_scalar(eval, a C.torus_handle, c C.uint64_t, out *C.torus_handle) C.torus_result {
	if out == nil {
		return nullOut("out")
	}
	h, res := registry.MulScalar(ffi.Handle(eval), ffi.Handle(a), uint64(c))
	return setHandle(out, h, res)
}

//export torus_mul_scalar_inplace
func torus_mul_scalar_inplace(eval, a C.torus_handle, c C.uint64_t) C.torus_result {
	return toC(registry.MulScalarInplace(ffi.Handle(eval), ffi.Handle(a), uint64(c)))
}

//export torus_mul_and_bootstrap
func torus_mul_and_bootstrap(eval, a, b C.torus_handle, out *C.torus_handle) C.torus_result {
	if out == nil {
		return nullOut("out")
	}
	h, res := registry.MulAndBootstrap(ffi.Handle(eval), ffi.Handle(a), ffi.Handle(b))
	return setHandle(out, h, res)
}

//export torus_relu
func torus_relu(eval, a C.torus_handle, out *C.torus_handle) C.torus_result {
	if out == nil {
		return nullOut("out")
	}
	h, res := registry.Relu(ffi.Handle(eval), ffi.Handle(a))
	return setHandle(out, h, res)
}

//export torus_refresh
func torus_refresh(eval, a C.torus_handle, out *C.torus_handle) C.torus_result {
	if out == nil {
		return nullOut("out")
	}
	h, res := registry.Refresh(ffi.Handle(eval), ffi.Handle(a))
	return setHandle(out, h, res)
}

//export torus_bootstrap_with_function
func torus_bootstrap_with_function(eval, a C.torus_handle, fn C.torus_lut_fn, userdata unsafe.Pointer, out *C.torus_handle) C.torus_result {
	if fn == nil {
		return nullOut("fn")
	}
	if out == nil {
		return nullOut("out")
	}
	h, res := registry.BootstrapWithFunction(ffi.Handle(eval), ffi.Handle(a), func(m uint64) uint64 {
		return uint64(C.torus_call_lut(fn, userdata, C.uint64_t(m)))
	})
	return setHandle(out, h, res)
}

// ========== Ciphertext ==========

//export torus_ciphertext_clone
func torus_ciphertext_clone(ct C.torus_handle, out *C.torus_handle) C.torus_result {
	if out == nil {
		return nullOut("out")
	}
	h, res := registry.CiphertextClone(ffi.Handle(ct))
	return setHandle(out, h, res)
}

// torus_ciphertext_serialize returns a malloc'd buffer; release it with
// torus_bytes_free.
//
//export torus_ciphertext_serialize
func torus_ciphertext_serialize(ct C.torus_handle, data **C.uint8_t, size *C.size_t) C.torus_result {
	if data == nil || size == nil {
		return nullOut("data or size")
	}
	b, res := registry.CiphertextSerialize(ffi.Handle(ct))
	if res.OK() {
		*data = (*C.uint8_t)(C.CBytes(b))
		*size = C.size_t(len(b))
	}
	return toC(res)
}

//export torus_ciphertext_deserialize
func torus_ciphertext_deserialize(data *C.uint8_t, size C.size_t, out *C.torus_handle) C.torus_result {
	if data == nil {
		return nullOut("data")
	}
	if out == nil {
		return nullOut("out")
	}
	if res := ffi.CheckBufferSize(uint64(size)); !res.OK() {
		return toC(res)
	}
	b := C.GoBytes(unsafe.Pointer(data), C.int(size))
	h, res := registry.CiphertextDeserialize(b)
	return setHandle(out, h, res)
}
