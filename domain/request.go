package domain

import "github.com/bytedance/sonic"

// PutRequest is the validated form of a PUT /api/list/{token} body.
type PutRequest struct {
	Title      string
	Items      []Item
	DeletedIDs DeletionSet
}

// ParsePutRequest validates a raw body of the shape
// {title: string, items: Item[], deletedItemIds?: string[]}.
// The first invalid item rejects the whole request.
func ParsePutRequest(body []byte, now int64) (PutRequest, error) {
	var raw any
	if err := sonic.ConfigStd.Unmarshal(body, &raw); err != nil {
		return PutRequest{}, bodyError(KindInvalidJSON)
	}
	rec, ok := raw.(map[string]any)
	if !ok {
		return PutRequest{}, bodyError(KindInvalidBody)
	}
	title, ok := rec["title"].(string)
	if !ok {
		return PutRequest{}, bodyError(KindInvalidTitle)
	}
	list, ok := rec["items"].([]any)
	if !ok {
		return PutRequest{}, bodyError(KindInvalidItems)
	}

	req := PutRequest{
		Title:      title,
		Items:      make([]Item, 0, len(list)),
		DeletedIDs: DeletionSet{},
	}
	for i, entry := range list {
		item, err := NormalizeItem(entry, i, now)
		if err != nil {
			return PutRequest{}, err
		}
		req.Items = append(req.Items, item)
	}

	if ids, ok := rec["deletedItemIds"].([]any); ok {
		for _, v := range ids {
			if id, ok := v.(string); ok && id != "" {
				req.DeletedIDs[id] = struct{}{}
			}
		}
	}
	return req, nil
}
