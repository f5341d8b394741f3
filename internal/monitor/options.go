// Copyright 2025 Edgeo SCADA
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package monitor

import (
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
)

// options holds configuration for the monitor
type options struct {
	logger      *slog.Logger
	validateCRC bool
	namespace   string
	registerer  prometheus.Registerer
}

// defaultOptions returns the default monitor options
func defaultOptions() *options {
	return &options{
		logger:      slog.Default(),
		validateCRC: true,
		namespace:   "bacdecode",
	}
}

// Option is a functional option for configuring the monitor
type Option func(*options)

// WithLogger sets the logger for the monitor
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithCRCValidation enables or disables MS/TP CRC computation
func WithCRCValidation(enable bool) Option {
	return func(o *options) {
		o.validateCRC = enable
	}
}

// WithNamespace sets the Prometheus metric namespace
func WithNamespace(namespace string) Option {
	return func(o *options) {
		o.namespace = namespace
	}
}

// WithRegisterer registers the monitor's collector with r
func WithRegisterer(r prometheus.Registerer) Option {
	return func(o *options) {
		o.registerer = r
	}
}
