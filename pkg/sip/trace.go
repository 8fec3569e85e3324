package sip

import "fmt"

// Trace comments record which rule touched an item. item is a description
// such as "CXX_METHOD on line 12 'KCodecs::Codec::encode'" and rule an
// identity such as "[0,function_discard]".

// ModifiedBy is "// Modified <item> (by <rule>):".
func ModifiedBy(item, rule string) string {
	return fmt.Sprintf("// Modified %s (by %s):\n", item, rule)
}

// DiscardedBy is "// Discarded <item> (by <rule>)".
func DiscardedBy(item, rule string) string {
	return fmt.Sprintf("// Discarded %s (by %s)\n", item, rule)
}

// GeneratedFor is "// Generated for <item> (by <rule>): <extra>".
func GeneratedFor(item, rule, extra string) string {
	return fmt.Sprintf("// Generated for %s (by %s): %s\n", item, rule, extra)
}

// InsertedFor is "// Inserted for <item> (by <rule>):".
func InsertedFor(item, rule string) string {
	return fmt.Sprintf("// Inserted for %s (by %s):\n", item, rule)
}
