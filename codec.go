package guardkit

import (
	"context"

	"github.com/fxamacker/cbor/v2"
)

// State values are CBOR-encoded. Account sets are persisted as slices in
// insertion order, which gives paginated queries a stable iteration order
// between mutations without promising any order across them.

func encodeValue(v any) ([]byte, error) {
	return cbor.Marshal(v)
}

func decodeValue(data []byte, v any) error {
	return cbor.Unmarshal(data, v)
}

// loadValue reads and decodes the value under key. The boolean reports
// whether the key exists.
func loadValue(ctx context.Context, store Store, key string, v any) (bool, error) {
	data, ok, err := store.Get(ctx, key)
	if err != nil {
		return false, storageErr("get "+key, err)
	}
	if !ok {
		return false, nil
	}
	if err := decodeValue(data, v); err != nil {
		return false, storageErr("decode "+key, err)
	}
	return true, nil
}

// saveValue encodes and writes v under key.
func saveValue(ctx context.Context, store Store, key string, v any) error {
	data, err := encodeValue(v)
	if err != nil {
		return storageErr("encode "+key, err)
	}
	if err := store.Set(ctx, key, data); err != nil {
		return storageErr("set "+key, err)
	}
	return nil
}

func deleteKey(ctx context.Context, store Store, key string) error {
	if err := store.Delete(ctx, key); err != nil {
		return storageErr("delete "+key, err)
	}
	return nil
}

// appendUnique appends account to list if absent. The boolean reports
// whether the list changed.
func appendUnique(list []string, account string) ([]string, bool) {
	for _, a := range list {
		if a == account {
			return list, false
		}
	}
	return append(list, account), true
}

// removeString removes account from list. The boolean reports whether the
// list changed.
func removeString(list []string, account string) ([]string, bool) {
	for i, a := range list {
		if a == account {
			return append(list[:i], list[i+1:]...), true
		}
	}
	return list, false
}

// paginate returns up to limit entries of list, skipping the first skip.
func paginate(list []string, skip, limit int) []string {
	if skip < 0 {
		skip = 0
	}
	if limit < 0 {
		limit = 0
	}
	if skip >= len(list) {
		return []string{}
	}
	end := skip + limit
	if end > len(list) {
		end = len(list)
	}
	out := make([]string, end-skip)
	copy(out, list[skip:end])
	return out
}
