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

package bacnet

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDecodeError(t *testing.T) {
	err := lengthError("insufficient size for bvlc")
	assert.Equal(t, "bacnet: length: insufficient size for bvlc", err.Error())
	assert.True(t, IsLength(err))
	assert.False(t, IsInvalidValue(err))

	var de *DecodeError
	assert.True(t, errors.As(err, &de))
	assert.Equal(t, "insufficient size for bvlc", de.Field)

	err = invalidValueError("invalid bvlc type")
	assert.True(t, errors.Is(err, ErrInvalidValue))
	assert.False(t, errors.Is(err, ErrUnknown))
}

func TestBACnetErrorIs(t *testing.T) {
	err := &BACnetError{Class: ErrorClassObject, Code: ErrorCodeUnknownObject}
	assert.True(t, errors.Is(err, &BACnetError{Class: ErrorClassObject, Code: ErrorCodeUnknownObject}))
	assert.False(t, errors.Is(err, &BACnetError{Class: ErrorClassProperty, Code: ErrorCodeUnknownObject}))
	assert.Equal(t, "bacnet error: class=object, code=unknown-object", err.Error())
}
