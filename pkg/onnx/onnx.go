//go:build onnxruntime

package onnx

/*
#cgo LDFLAGS: -lonnxruntime
#include <onnxruntime_c_api.h>
#include <stdlib.h>
#include <string.h>

static const OrtApi* ort_api() {
    return OrtGetApiBase()->GetApi(ORT_API_VERSION);
}

static OrtStatus* ort_create_env(const OrtApi* api, const char* name, OrtEnv** out) {
    return api->CreateEnv(ORT_LOGGING_LEVEL_WARNING, name, out);
}

static OrtStatus* ort_create_session_options(const OrtApi* api, int intra, int inter, OrtSessionOptions** out) {
    OrtStatus* status = api->CreateSessionOptions(out);
    if (status) return status;
    if (intra > 0) {
        status = api->SetIntraOpNumThreads(*out, intra);
        if (status) return status;
    }
    if (inter > 0) {
        status = api->SetInterOpNumThreads(*out, inter);
    }
    return status;
}

static OrtStatus* ort_create_session_from_memory(const OrtApi* api, OrtEnv* env,
    const void* model_data, size_t model_data_len, OrtSessionOptions* opts, OrtSession** out) {
    return api->CreateSessionFromArray(env, model_data, model_data_len, opts, out);
}

static OrtStatus* ort_create_tensor(const OrtApi* api, OrtMemoryInfo* info,
    void* data, size_t data_bytes, int64_t* shape, size_t shape_len,
    ONNXTensorElementDataType dtype, OrtValue** out) {
    return api->CreateTensorWithDataAsOrtValue(info, data, data_bytes,
        shape, shape_len, dtype, out);
}

static OrtStatus* ort_create_cpu_memory_info(const OrtApi* api, OrtMemoryInfo** out) {
    return api->CreateCpuMemoryInfo(OrtArenaAllocator, OrtMemTypeDefault, out);
}

static OrtStatus* ort_run(const OrtApi* api, OrtSession* session,
    const char** input_names, const OrtValue* const* inputs, size_t num_inputs,
    const char** output_names, size_t num_outputs, OrtValue** outputs) {
    return api->Run(session, NULL, input_names, inputs, num_inputs,
        output_names, num_outputs, outputs);
}

static OrtStatus* ort_get_tensor_data(const OrtApi* api, OrtValue* value, void** out) {
    return api->GetTensorMutableData(value, out);
}

static OrtStatus* ort_get_tensor_info(const OrtApi* api, OrtValue* value,
    int64_t* shape, size_t shape_cap, size_t* ndim, ONNXTensorElementDataType* dtype) {
    OrtTensorTypeAndShapeInfo* info;
    OrtStatus* status = api->GetTensorTypeAndShape(value, &info);
    if (status) return status;
    status = api->GetDimensionsCount(info, ndim);
    if (!status && shape && *ndim <= shape_cap) {
        status = api->GetDimensions(info, shape, *ndim);
    }
    if (!status) {
        status = api->GetTensorElementType(info, dtype);
    }
    api->ReleaseTensorTypeAndShapeInfo(info);
    return status;
}

static const char* ort_error_message(const OrtApi* api, OrtStatus* status) {
    return api->GetErrorMessage(status);
}

static void ort_release_status(const OrtApi* api, OrtStatus* status) { api->ReleaseStatus(status); }
static void ort_release_env(const OrtApi* api, OrtEnv* env) { api->ReleaseEnv(env); }
static void ort_release_session(const OrtApi* api, OrtSession* s) { api->ReleaseSession(s); }
static void ort_release_session_options(const OrtApi* api, OrtSessionOptions* o) { api->ReleaseSessionOptions(o); }
static void ort_release_memory_info(const OrtApi* api, OrtMemoryInfo* i) { api->ReleaseMemoryInfo(i); }
static void ort_release_value(const OrtApi* api, OrtValue* v) { api->ReleaseValue(v); }
*/
import "C"

import (
	"errors"
	"fmt"
	"runtime"
	"unsafe"
)

// maxRank bounds the tensor ranks read back from the runtime.
const maxRank = 8

// ErrDType is returned when a tensor is read as the wrong element type.
var ErrDType = errors.New("onnx: wrong tensor element type")

func api() *C.OrtApi {
	return C.ort_api()
}

// checkStatus converts an OrtStatus to a Go error.
func checkStatus(status *C.OrtStatus) error {
	if status == nil {
		return nil
	}
	msg := C.GoString(C.ort_error_message(api(), status))
	C.ort_release_status(api(), status)
	return fmt.Errorf("onnx: %s", msg)
}

// --------------------------------------------------------------------------
// Env
// --------------------------------------------------------------------------

// Env is the ONNX Runtime environment. Create one per process.
type Env struct {
	env *C.OrtEnv
}

// NewEnv creates a new ONNX Runtime environment.
func NewEnv(name string) (*Env, error) {
	cName := C.CString(name)
	defer C.free(unsafe.Pointer(cName))

	var env *C.OrtEnv
	if err := checkStatus(C.ort_create_env(api(), cName, &env)); err != nil {
		return nil, err
	}
	e := &Env{env: env}
	runtime.SetFinalizer(e, (*Env).Close)
	return e, nil
}

// SessionOptions tunes a session. Zero values keep the runtime defaults.
type SessionOptions struct {
	IntraOpThreads int
	InterOpThreads int
}

// NewSession creates a session from in-memory ONNX model data.
func (e *Env) NewSession(modelData []byte, o SessionOptions) (*Session, error) {
	if len(modelData) == 0 {
		return nil, fmt.Errorf("onnx: empty model data")
	}

	var opts *C.OrtSessionOptions
	status := C.ort_create_session_options(api(), C.int(o.IntraOpThreads), C.int(o.InterOpThreads), &opts)
	if opts != nil {
		defer C.ort_release_session_options(api(), opts)
	}
	if err := checkStatus(status); err != nil {
		return nil, err
	}

	var session *C.OrtSession
	if err := checkStatus(C.ort_create_session_from_memory(
		api(), e.env,
		unsafe.Pointer(&modelData[0]), C.size_t(len(modelData)),
		opts, &session,
	)); err != nil {
		return nil, err
	}

	s := &Session{session: session, pinned: modelData}
	runtime.SetFinalizer(s, (*Session).Close)
	return s, nil
}

// Close releases the environment.
func (e *Env) Close() error {
	if e.env != nil {
		C.ort_release_env(api(), e.env)
		e.env = nil
		runtime.SetFinalizer(e, nil)
	}
	return nil
}

// --------------------------------------------------------------------------
// Session
// --------------------------------------------------------------------------

// Session holds a loaded ONNX graph.
type Session struct {
	session *C.OrtSession
	pinned  any // keeps the model bytes alive
}

// Run executes inference with the given inputs and output names. The
// caller must close each output tensor.
func (s *Session) Run(inputNames []string, inputs []*Tensor, outputNames []string) ([]*Tensor, error) {
	if s.session == nil {
		return nil, fmt.Errorf("onnx: run on closed session")
	}
	if len(inputNames) != len(inputs) {
		return nil, fmt.Errorf("onnx: input names/tensors length mismatch: %d vs %d", len(inputNames), len(inputs))
	}
	if len(inputs) == 0 || len(outputNames) == 0 {
		return nil, fmt.Errorf("onnx: run needs at least one input and one output")
	}

	cInputNames := make([]*C.char, len(inputNames))
	for i, name := range inputNames {
		cInputNames[i] = C.CString(name)
		defer C.free(unsafe.Pointer(cInputNames[i]))
	}
	cInputs := make([]*C.OrtValue, len(inputs))
	for i, t := range inputs {
		cInputs[i] = t.value
	}
	cOutputNames := make([]*C.char, len(outputNames))
	for i, name := range outputNames {
		cOutputNames[i] = C.CString(name)
		defer C.free(unsafe.Pointer(cOutputNames[i]))
	}
	cOutputs := make([]*C.OrtValue, len(outputNames))

	status := C.ort_run(api(), s.session,
		&cInputNames[0], &cInputs[0], C.size_t(len(inputs)),
		&cOutputNames[0], C.size_t(len(outputNames)), &cOutputs[0],
	)
	runtime.KeepAlive(inputs)
	if err := checkStatus(status); err != nil {
		return nil, err
	}

	outputs := make([]*Tensor, len(outputNames))
	for i, val := range cOutputs {
		outputs[i] = &Tensor{value: val, owned: true}
		runtime.SetFinalizer(outputs[i], (*Tensor).Close)
	}
	return outputs, nil
}

// Close releases the session.
func (s *Session) Close() error {
	if s.session != nil {
		C.ort_release_session(api(), s.session)
		s.session = nil
		runtime.SetFinalizer(s, nil)
	}
	return nil
}

// --------------------------------------------------------------------------
// Tensor
// --------------------------------------------------------------------------

// Tensor is an N-dimensional tensor (OrtValue).
type Tensor struct {
	value  *C.OrtValue
	pinned any  // keeps Go-owned data alive
	owned  bool // Close releases the OrtValue
}

func elements(shape []int64) (int64, error) {
	if len(shape) == 0 {
		return 0, fmt.Errorf("onnx: empty shape")
	}
	total := int64(1)
	for _, d := range shape {
		if d <= 0 {
			return 0, fmt.Errorf("onnx: non-positive dimension in shape %v", shape)
		}
		total *= d
	}
	return total, nil
}

func newTensor(shape []int64, ptr unsafe.Pointer, bytes int, dtype C.ONNXTensorElementDataType, pinned any) (*Tensor, error) {
	var memInfo *C.OrtMemoryInfo
	if err := checkStatus(C.ort_create_cpu_memory_info(api(), &memInfo)); err != nil {
		return nil, err
	}
	defer C.ort_release_memory_info(api(), memInfo)

	var value *C.OrtValue
	if err := checkStatus(C.ort_create_tensor(
		api(), memInfo, ptr, C.size_t(bytes),
		(*C.int64_t)(unsafe.Pointer(&shape[0])), C.size_t(len(shape)),
		dtype, &value,
	)); err != nil {
		return nil, err
	}
	t := &Tensor{value: value, pinned: pinned, owned: true}
	runtime.SetFinalizer(t, (*Tensor).Close)
	return t, nil
}

// NewTensor creates a float32 tensor with the given shape over data. The
// data slice must remain valid for the lifetime of the Tensor.
func NewTensor(shape []int64, data []float32) (*Tensor, error) {
	total, err := elements(shape)
	if err != nil {
		return nil, err
	}
	if int64(len(data)) < total {
		return nil, fmt.Errorf("onnx: tensor data too short: got %d, need %d", len(data), total)
	}
	return newTensor(shape, unsafe.Pointer(&data[0]), int(total)*4, C.ONNX_TENSOR_ELEMENT_DATA_TYPE_FLOAT, data)
}

// NewInt64Tensor creates an int64 tensor, used for token ids and scalar
// counters.
func NewInt64Tensor(shape []int64, data []int64) (*Tensor, error) {
	total, err := elements(shape)
	if err != nil {
		return nil, err
	}
	if int64(len(data)) < total {
		return nil, fmt.Errorf("onnx: tensor data too short: got %d, need %d", len(data), total)
	}
	return newTensor(shape, unsafe.Pointer(&data[0]), int(total)*8, C.ONNX_TENSOR_ELEMENT_DATA_TYPE_INT64, data)
}

func (t *Tensor) info() ([]int64, C.ONNXTensorElementDataType, error) {
	var (
		shape [maxRank]C.int64_t
		ndim  C.size_t
		dtype C.ONNXTensorElementDataType
	)
	if err := checkStatus(C.ort_get_tensor_info(api(), t.value, &shape[0], maxRank, &ndim, &dtype)); err != nil {
		return nil, 0, err
	}
	if ndim > maxRank {
		return nil, 0, fmt.Errorf("onnx: tensor rank %d exceeds %d", ndim, maxRank)
	}
	out := make([]int64, int(ndim))
	for i := range out {
		out[i] = int64(shape[i])
	}
	return out, dtype, nil
}

// Shape returns the tensor dimensions.
func (t *Tensor) Shape() ([]int64, error) {
	shape, _, err := t.info()
	return shape, err
}

func (t *Tensor) data(want C.ONNXTensorElementDataType) (unsafe.Pointer, int, error) {
	shape, dtype, err := t.info()
	if err != nil {
		return nil, 0, err
	}
	if dtype != want {
		return nil, 0, fmt.Errorf("%w: %d, want %d", ErrDType, dtype, want)
	}
	total := 1
	for _, d := range shape {
		total *= int(d)
	}
	if total <= 0 {
		return nil, 0, nil
	}
	var ptr unsafe.Pointer
	if err := checkStatus(C.ort_get_tensor_data(api(), t.value, &ptr)); err != nil {
		return nil, 0, err
	}
	return ptr, total, nil
}

// FloatData copies float32 tensor data into a new slice.
func (t *Tensor) FloatData() ([]float32, error) {
	ptr, n, err := t.data(C.ONNX_TENSOR_ELEMENT_DATA_TYPE_FLOAT)
	if err != nil || n == 0 {
		return nil, err
	}
	out := make([]float32, n)
	C.memcpy(unsafe.Pointer(&out[0]), ptr, C.size_t(n*4))
	return out, nil
}

// Int64Data copies int64 tensor data into a new slice.
func (t *Tensor) Int64Data() ([]int64, error) {
	ptr, n, err := t.data(C.ONNX_TENSOR_ELEMENT_DATA_TYPE_INT64)
	if err != nil || n == 0 {
		return nil, err
	}
	out := make([]int64, n)
	C.memcpy(unsafe.Pointer(&out[0]), ptr, C.size_t(n*8))
	return out, nil
}

// Close releases the tensor.
func (t *Tensor) Close() error {
	if t.value != nil && t.owned {
		C.ort_release_value(api(), t.value)
		t.value = nil
		runtime.SetFinalizer(t, nil)
	}
	return nil
}

// CloseAll closes every tensor in ts.
func CloseAll(ts []*Tensor) {
	for _, t := range ts {
		if t != nil {
			t.Close()
		}
	}
}
