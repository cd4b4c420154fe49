// Dialogsync - Instance to Dialog Registry Event Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dialogsync

package models

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// ErrInvalidInstanceKey is returned when a composite instance key does not
// have the form "{partyId}/{instanceId}".
var ErrInvalidInstanceKey = errors.New("invalid instance key")

// ParseInstanceKey splits a composite "{partyId}/{instanceId}" key into the
// numeric party id and the instance UUID. Both halves must be present and
// well formed; there is no partial result on failure.
func ParseInstanceKey(key string) (partyID int64, instanceID uuid.UUID, err error) {
	party, instance, found := strings.Cut(key, "/")
	if !found || strings.Contains(instance, "/") {
		return 0, uuid.Nil, fmt.Errorf("%w %q: expected {partyId}/{instanceId}", ErrInvalidInstanceKey, key)
	}

	partyID, err = strconv.ParseInt(party, 10, 64)
	if err != nil || partyID < 0 {
		return 0, uuid.Nil, fmt.Errorf("%w %q: party id %q is not a non-negative integer", ErrInvalidInstanceKey, key, party)
	}

	instanceID, err = uuid.Parse(instance)
	if err != nil {
		return 0, uuid.Nil, fmt.Errorf("%w %q: instance id: %v", ErrInvalidInstanceKey, key, err)
	}

	return partyID, instanceID, nil
}

// FormatInstanceKey is the inverse of ParseInstanceKey.
func FormatInstanceKey(partyID int64, instanceID uuid.UUID) string {
	return strconv.FormatInt(partyID, 10) + "/" + instanceID.String()
}
