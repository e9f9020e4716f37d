// Copyright 2025 Kadir Pekel
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

package observability

// Span names.
const (
	SpanWorkflowRun   = "crewlink.workflow.run"
	SpanToolExecution = "crewlink.tool.execute"
	SpanHTTPRequest   = "http.request"
)

// Span attributes.
const (
	AttrTopic       = "crewlink.research.topic"
	AttrQuery       = "crewlink.research.query"
	AttrToolName    = "crewlink.tool.name"
	AttrToolSuccess = "crewlink.tool.success"
	AttrRunName     = "crewlink.tracker.run"

	AttrHTTPMethod       = "http.request.method"
	AttrHTTPPath         = "url.path"
	AttrHTTPStatusCode   = "http.response.status_code"
	AttrHTTPResponseSize = "http.response.body.size"
	AttrErrorType        = "error.type"
)

// Exporters.
const (
	ExporterOTLP   = "otlp"
	ExporterStdout = "stdout"
)

const (
	DefaultServiceName  = "crewlink"
	DefaultOTLPEndpoint = "localhost:4317"
	DefaultSamplingRate = 1.0

	// TracerName is the instrumentation scope used across the module.
	TracerName = "github.com/kadirpekel/crewlink"
)
