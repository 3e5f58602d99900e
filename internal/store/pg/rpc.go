package pg

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"continuity.org/internal/analytics"
)

var argName = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// RPC runs one of the published analysis functions with named arguments and
// returns its json result verbatim. It satisfies analytics.Caller.
func (s *Store) RPC(ctx context.Context, fn string, args any) (json.RawMessage, error) {
	name, err := analytics.ParseName(fn)
	if err != nil {
		return nil, err
	}
	named, ok := args.(map[string]string)
	if !ok && args != nil {
		return nil, fmt.Errorf("rpc %s: unsupported args %T", fn, args)
	}
	keys := make([]string, 0, len(named))
	for k := range named {
		if !argName.MatchString(k) {
			return nil, fmt.Errorf("rpc %s: invalid argument name %q", fn, k)
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	params := make([]string, len(keys))
	values := make([]any, len(keys))
	for i, k := range keys {
		params[i] = fmt.Sprintf("%s => $%d", k, i+1)
		values[i] = named[k]
	}
	query := fmt.Sprintf("select coalesce(to_json(%s(%s))::text, 'null')", string(name), strings.Join(params, ", "))

	var out string
	if err := s.db.QueryRowxContext(ctx, query, values...).Scan(&out); err != nil {
		return nil, fmt.Errorf("rpc %s: %w", fn, err)
	}
	return json.RawMessage(out), nil
}
