// Copyright 2025 Poiesic Systems
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


package core

import "errors"

// Domain validation errors
var (
	// ErrInvalidRecord indicates an extracted record failed schema validation.
	ErrInvalidRecord = errors.New("invalid record")

	// ErrMissingIdentity indicates a record has no resource_type or title.
	ErrMissingIdentity = errors.New("identity field cannot be empty")

	// ErrConfidenceRange indicates a confidence outside [0.0, 1.0].
	ErrConfidenceRange = errors.New("confidence must be between 0.0 and 1.0")

	// ErrUnnamedField indicates an argument or attribute without a name.
	ErrUnnamedField = errors.New("argument or attribute name cannot be empty")

	// ErrTooManyExtras indicates the metadata side map is full.
	ErrTooManyExtras = errors.New("too many metadata extras")

	// ErrUnknownDocType indicates an unrecognized document type name.
	ErrUnknownDocType = errors.New("unknown document type")
)
