package metrics

type contextKey string

func (c contextKey) String() string {
	return "mediaServerContextKey" + string(c)
}

var RetriesKey = contextKey("MediaServerRetries")
