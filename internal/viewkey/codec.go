// Package viewkey serializes and parses plain and block-scoped view keys
// to and from their persisted "dvk1:"/"dvk2:" text formats.
package viewkey

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/duststealth/core/internal/field"
	"github.com/duststealth/core/internal/keys"
)

// Errors returned while parsing a serialized view key.
var (
	ErrUnknownPrefix  = errors.New("viewkey: unrecognized prefix")
	ErrMalformed      = errors.New("viewkey: malformed view key string")
	ErrInvalidHexPart = errors.New("viewkey: hex part must be 64 hex characters")
	ErrBadRange       = errors.New("viewkey: startBlock must be <= endBlock")
)

var hex64 = regexp.MustCompile(`^[0-9a-fA-F]{64}$`)

const (
	plainPrefix  = "dvk1"
	scopedPrefix = "dvk2"
)

// SerializePlain renders vk as "dvk1:<ownerPubKey>:<nullifierKey>".
func SerializePlain(vk keys.ViewKey) string {
	return fmt.Sprintf("%s:%s:%s", plainPrefix,
		stripPrefix(field.ToBytes32Hex(vk.OwnerPubKey)),
		stripPrefix(field.ToBytes32Hex(vk.NullifierKey)))
}

// SerializeScoped renders svk as "dvk2:<ownerPubKey>:<nullifierKey>:<startBlock>:<endBlock>".
func SerializeScoped(svk keys.ScopedViewKey) string {
	return fmt.Sprintf("%s:%s:%s:%d:%d", scopedPrefix,
		stripPrefix(field.ToBytes32Hex(svk.OwnerPubKey)),
		stripPrefix(field.ToBytes32Hex(svk.NullifierKey)),
		svk.StartBlock, svk.EndBlock)
}

func stripPrefix(s string) string {
	return strings.TrimPrefix(s, "0x")
}

// Parse dispatches on s's prefix and returns either a ViewKey or a
// ScopedViewKey, reported via exactly one of the two return values being
// non-nil.
func Parse(s string) (*keys.ViewKey, *keys.ScopedViewKey, error) {
	parts := strings.Split(s, ":")
	if len(parts) < 1 {
		return nil, nil, ErrMalformed
	}

	switch parts[0] {
	case plainPrefix:
		if len(parts) != 3 {
			return nil, nil, ErrMalformed
		}
		owner, err := hexPart(parts[1])
		if err != nil {
			return nil, nil, err
		}
		nullifierKey, err := hexPart(parts[2])
		if err != nil {
			return nil, nil, err
		}
		return &keys.ViewKey{OwnerPubKey: owner, NullifierKey: nullifierKey}, nil, nil

	case scopedPrefix:
		if len(parts) != 5 {
			return nil, nil, ErrMalformed
		}
		owner, err := hexPart(parts[1])
		if err != nil {
			return nil, nil, err
		}
		nullifierKey, err := hexPart(parts[2])
		if err != nil {
			return nil, nil, err
		}
		start, err := strconv.ParseUint(parts[3], 10, 64)
		if err != nil {
			return nil, nil, ErrMalformed
		}
		end, err := strconv.ParseUint(parts[4], 10, 64)
		if err != nil {
			return nil, nil, ErrMalformed
		}
		if start > end {
			return nil, nil, ErrBadRange
		}
		return nil, &keys.ScopedViewKey{
			ViewKey:    keys.ViewKey{OwnerPubKey: owner, NullifierKey: nullifierKey},
			StartBlock: start,
			EndBlock:   end,
		}, nil

	default:
		return nil, nil, ErrUnknownPrefix
	}
}

func hexPart(s string) (field.Elem, error) {
	if !hex64.MatchString(s) {
		return nil, ErrInvalidHexPart
	}
	return field.StrictFromHex("0x" + s)
}
