package routing

// SourceType names a kind of configuration source a rules document can be
// loaded from.
type SourceType string

const (
	// SourceJSONFile loads the rules document from a local JSON file.
	SourceJSONFile SourceType = "JSONFILE"

	// SourceUnsupported is a recognized placeholder for source kinds this
	// build refuses to load.
	SourceUnsupported SourceType = "UNSUPPORTED"
)

// SourceConfig identifies where a rules document lives. AccessKey and
// SecretKey are carried for remote source kinds; the JSONFILE loader
// ignores them.
type SourceConfig struct {
	Type      SourceType
	URI       string
	AccessKey string
	SecretKey string
}

// SupportedSourceTypes returns the source kinds this build can load.
func SupportedSourceTypes() []SourceType {
	return []SourceType{SourceJSONFile}
}

func supportedSourceTypeNames() []string {
	supported := SupportedSourceTypes()
	names := make([]string, len(supported))
	for i, kind := range supported {
		names[i] = string(kind)
	}
	return names
}
