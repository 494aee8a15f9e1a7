// Package validatecode catalogues the OCFL v1.0 validation error and
// warning codes (https://ocfl.io/1.0/spec/validation-codes.html) that the
// object validator (object package) can raise. It is a representative
// subset of the published catalogue that includes every code this module's
// validators raise, along with some codes they never raise.
package validatecode

// Code identifies a single OCFL validation error or warning code.
type Code struct {
	Code        string // e.g. "E001"
	Description string // verbatim (or near-verbatim) from the spec
	URL         string // reference URL into the spec's validation-codes page
}

func ref(code, desc string) Code {
	return Code{Code: code, Description: desc, URL: "https://ocfl.io/1.0/spec/validation-codes.html#" + code}
}

var (
	E001 = ref("E001", "The OCFL Object Root must not contain files or directories other than those specified in the specification.")
	E002 = ref("E002", "The version declaration must be formatted according to the NAMASTE specification.")
	E003 = ref("E003", "The version declaration must be a file in the base directory of the OCFL Object Root giving the OCFL version.")
	E006 = ref("E006", "The version declaration filename MUST start with 0=ocfl_object_ followed by the OCFL specification version number.")
	E007 = ref("E007", "The text contents of the version declaration file must be the declaration value followed by a newline.")
	E008 = ref("E008", "OCFL Object content must be stored as a sequence of one or more versions.")
	E009 = ref("E009", "The version number sequence MUST start at 1 and must be continuous without missing integers.")
	E011 = ref("E011", "If zero-padded version directory numbers are used, they must start with the prefix v and then a zero.")
	E012 = ref("E012", "All version directories of an object must use the same naming convention: non-padded, or zero-padded of consistent length.")
	E013 = ref("E013", "A new version directory must follow the version directory naming convention established by earlier versions.")
	E015 = ref("E015", "There must be no other files as children of a version directory other than the inventory file and its sidecar.")
	E023 = ref("E023", "Every file in a version's content directory must be referenced in the manifest of the inventory of the most recent version.")
	E033 = ref("E033", "Every OCFL Object Root must contain an inventory file in the root of the object.")
	E034 = ref("E034", "Every OCFL Object Root must contain a sidecar file with the digest of the inventory file, named inventory.json.<digestAlgorithm>.")
	E036 = ref("E036", "The inventory must include the following keys: id, type, digestAlgorithm, head, manifest, versions.")
	E040 = ref("E040", "The value of the id key must be unique and consistent across all versions of the object.")
	E041 = ref("E041", "The type value of the inventory must be the URI of the inventory section of the specification version the inventory conforms to.")
	E042 = ref("E042", "The digestAlgorithm value must be sha512 or sha256.")
	E043 = ref("E043", "The content of the version declaration file must match the actual OCFL version used.")
	E044 = ref("E044", "The inventory file in the most recent version's version directory must be identical to the root inventory file.")
	E049 = ref("E049", "The value of the head key must be the version directory name with the highest version number.")
	E050 = ref("E050", "In the manifest, content paths must not begin or end with a forward slash.")
	E051 = ref("E051", "In the manifest, content paths must be relative and unique.")
	E058 = ref("E058", "Version directories must be named using the format vN, or zero-padded vNNN, starting at v1.")
	E064 = ref("E064", "In each version's state, logical paths must not begin or end with a forward slash.")
	E066 = ref("E066", "Every manifest entry must be used in at least one version's state.")
	E067 = ref("E067", "Every digest in the manifest or a version's fixity block must correspond to actual content in the object.")
	E092 = ref("E092", "In each version's state, all digests must be case-insensitively unique.")
	E094 = ref("E094", "The value of the message key in a version must be a string.")
	E095 = ref("E095", "In each version's state, logical paths must be unique and non-conflicting (no path may be both a file and a directory prefix).")
	E096 = ref("E096", "As content paths within a content directory must be unique, they must also be case-insensitively unique.")
	E097 = ref("E097", "The content path must be interpreted as a set of one or more path elements joined by a forward slash.")
	E099 = ref("E099", "Version directory content must be organized under the specified content directory, or named cv1 by default.")
	E100 = ref("E100", "The inventory sidecar digest must match the actual digest of the inventory file content, computed with digestAlgorithm.")
	E102 = ref("E102", "The digests used in the manifest and fixity blocks must be lowercase if the algorithm is case-insensitive, consistently.")
	E004 = ref("E004", "The version declaration must indicate an OCFL Object, not an OCFL Storage Root or other NAMASTE-declared entity.")
	E016 = ref("E016", "The content directory, once created, must not be empty.")
	E017 = ref("E017", "The contentDirectory value must not contain the forward slash path separator and must not be either one or two periods.")
	E093 = ref("E093", "Every digest referenced by a manifest or fixity entry must correspond to content that exists at the expected path.")

	W001 = ref("W001", "Implementations should use a trailing slash-free representation of content and logical paths.")
	W002 = ref("W002", "A version directory should not contain directories other than its content directory.")
	W011 = ref("W011", "The message, user, or created timestamp of a version's inventory in the version directory should match the root inventory.")
	W004 = ref("W004", "In the storage root, the OCFL recommends using uppercase SHA512 for content-addressing unless good reason exists otherwise.")
	W005 = ref("W005", "The inventory id should be a URI.")
	W007 = ref("W007", "The version should include a message recording the reason for the change.")
	W008 = ref("W008", "The version should include a user with a name.")
	W009 = ref("W009", "The user address should be a URI, e.g. a mailto: or https: URI.")
	W010 = ref("W010", "The version directory should include an inventory file, even when the digest matches the root inventory, for robustness.")
	W013 = ref("W013", "Subdirectories of an extensions directory should be named after registered extensions.")
)
