package playtime

import "encoding/json"

type timesJSON struct {
	Buckets   map[string]map[string]int64 `json:"buckets"`
	Location  string                      `json:"location"`
	Mode      string                      `json:"mode"`
	Last      int64                       `json:"last"`
	Committed int64                       `json:"committed,omitempty"`
	Final     bool                        `json:"final,omitempty"`
}

func (t *Times) MarshalJSON() ([]byte, error) {
	return json.Marshal(timesJSON{
		Buckets:   t.buckets,
		Location:  t.location,
		Mode:      t.mode,
		Last:      t.last,
		Committed: t.committed,
		Final:     t.final,
	})
}

func (t *Times) UnmarshalJSON(b []byte) error {
	var tj timesJSON
	if err := json.Unmarshal(b, &tj); err != nil {
		return err
	}
	if tj.Buckets == nil {
		tj.Buckets = map[string]map[string]int64{}
	}
	*t = Times{
		buckets:   tj.Buckets,
		location:  tj.Location,
		mode:      tj.Mode,
		last:      tj.Last,
		committed: max(tj.Committed, tj.Last),
		final:     tj.Final,
	}
	return nil
}
