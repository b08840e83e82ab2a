//go:build onnxruntime

package main

import _ "github.com/haivivi/pockettts/pkg/acoustic/onnxcore"
