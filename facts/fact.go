package facts

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"
)

// Type names a fact kind appended to the fact stream.
type Type string

const (
	UserRegistered            Type = "UserRegistered"
	SessionCreated            Type = "SessionCreated"
	SessionRevoked            Type = "SessionRevoked"
	ProfileUpdated            Type = "ProfileUpdated"
	AssetMinted               Type = "AssetMinted"
	AssetTransferred          Type = "AssetTransferred"
	VerificationStatusChanged Type = "VerificationStatusChanged"
	MembershipChanged         Type = "MembershipChanged"
)

const (
	fieldType    = "type"
	fieldActor   = "actor"
	fieldSubject = "subject"
	fieldAt      = "at"

	// AttrPrefix marks stream fields that carry a fact attribute.
	AttrPrefix = "attr."
)

// ErrMalformedFact is returned when a stream entry lacks the core fact fields.
var ErrMalformedFact = errors.New("malformed fact entry")

// Fact is one immutable record of a state change. ID is the stream entry id
// assigned by Redis and is empty until the fact has been appended.
type Fact struct {
	ID      string
	Type    Type
	Actor   string
	Subject string
	At      int64
	Attrs   map[string]string
}

// Args flattens the fact into XADD field/value arguments. Attributes are
// emitted in key order so the stream entry is deterministic.
func (f Fact) Args() []interface{} {
	args := make([]interface{}, 0, 8+2*len(f.Attrs))
	args = append(args,
		fieldType, string(f.Type),
		fieldActor, f.Actor,
		fieldSubject, f.Subject,
		fieldAt, strconv.FormatInt(f.At, 10),
	)

	keys := make([]string, 0, len(f.Attrs))
	for k := range f.Attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		args = append(args, AttrPrefix+k, f.Attrs[k])
	}
	return args
}

// Pack encodes facts into the argument layout consumed by [EmitLua]: the fact
// count, then per fact its field count followed by the fields.
func Pack(fs ...Fact) []interface{} {
	out := []interface{}{len(fs)}
	for _, f := range fs {
		args := f.Args()
		out = append(out, len(args))
		out = append(out, args...)
	}
	return out
}

// FromMessage decodes a stream entry back into a [Fact].
func FromMessage(msg redis.XMessage) (Fact, error) {
	f := Fact{ID: msg.ID}

	typ, ok := msg.Values[fieldType].(string)
	if !ok || typ == "" {
		return Fact{}, fmt.Errorf("%w: %s missing type", ErrMalformedFact, msg.ID)
	}
	f.Type = Type(typ)

	f.Actor, _ = msg.Values[fieldActor].(string)
	f.Subject, _ = msg.Values[fieldSubject].(string)

	at, _ := msg.Values[fieldAt].(string)
	ms, err := strconv.ParseInt(at, 10, 64)
	if err != nil {
		return Fact{}, fmt.Errorf("%w: %s bad timestamp", ErrMalformedFact, msg.ID)
	}
	f.At = ms

	for k, v := range msg.Values {
		if !strings.HasPrefix(k, AttrPrefix) {
			continue
		}
		s, ok := v.(string)
		if !ok {
			continue
		}
		if f.Attrs == nil {
			f.Attrs = make(map[string]string)
		}
		f.Attrs[strings.TrimPrefix(k, AttrPrefix)] = s
	}

	return f, nil
}

// EmitLua defines emit_facts(stream, args, idx) for scripts that append facts
// in the same atomic step as their mutation. It reads the [Pack] layout
// starting at args[idx] and returns the index after the last consumed value.
const EmitLua = `
local function emit_facts(stream, args, idx)
  local n = tonumber(args[idx])
  idx = idx + 1
  for f = 1, n do
    local cnt = tonumber(args[idx])
    redis.call("XADD", stream, "*", unpack(args, idx + 1, idx + cnt))
    idx = idx + 1 + cnt
  end
  return idx
end
`
