package generator

// Exported for testing.
var (
	SipFileFor        = sipFileFor
	ModuleFile        = moduleFile
	DedupeLegacyNames = dedupeLegacyNames
	DropShadowed      = dropShadowed
)
