// SAGE - Secure Agent Guarantee Engine
// Copyright (C) 2025 SAGE-X-project
//
// This file is part of SAGE.
//
// SAGE is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// SAGE is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with SAGE. If not, see <https://www.gnu.org/licenses/>.

package metrics

import "github.com/prometheus/client_golang/prometheus"

// namespace prefixes every metric name registered by this package.
const namespace = "securemsg"

// Registry is the process-wide Prometheus registry every metric in this
// package attaches to, kept separate from prometheus.DefaultRegisterer so
// a binary that imports this package doesn't also pull in the Go runtime
// collectors unless it asks for them explicitly.
var Registry = prometheus.NewRegistry()
