// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

// Package version defines the version of cuda-inspect
package version

// InspectorVersion contains the version of cuda-inspect.
// It is populated at build time using build flags (-ldflags "-X ...").
var InspectorVersion string

// Commit is populated with the short commit hash from which the binary was built
var Commit string

var inspectorVersionDefault = "0.1.0-devel"

func init() {
	if InspectorVersion == "" {
		InspectorVersion = inspectorVersionDefault
	}
}
