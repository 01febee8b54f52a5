package fetch

import "github.com/khanhnv2901/webapp-tripwire/internal/domain/integrity"

// legacyStubSums are contents commonly left behind in files that old
// WordPress releases shipped and later emptied or removed.
var legacyStubSums = []string{
	"96137494913a1f730a592e8932af394e",
	"fc6d4a63d1362e49feddcb621a9f0b00",
	"32c101e865d8c2c2aaadeb5cc6c16f67",
	"862dec5c27142824a394bc6464928f48",
}

// wordpressLegacySums lists the historical contents accepted for files that
// linger on upgraded WordPress sites. They are merged into every
// wordpress-core reference set.
var wordpressLegacySums = map[string][]string{
	"wp-app.php": {
		"7615cae3d7b9d250c77a7100d7f25643", "790ca6e3319be86f1feec84ce82b0d95",
		"862582af648e46a11b125fbd6582885e", "cf892337fc983cf52f0e4c4b8ca70a08",
		"f9325a411fbbae3350efb5cc29a1b238",
	},
	"wp-atom.php": {
		"7ff0df5d421f07e0d289933fa61a2f15", "41ee2f11d9757ec2659052eed3173df0",
		"4c9918dd470acdbef6d9fde9e1e54491",
	},
	"wp-commentsrss2.php": {
		"27fc5177624504c738c7acb24efb32ae", "fc053ca6e39ab0d4a216fe86c6e77ca8",
		"96d5824afd7896c0913b9c43de4dd067",
	},
	"wp-feed.php": {
		"5b29757ae79246933a5793b5bdfc5090", "d6ab3ec9c37be35fce9706559a825bd3",
		"ec83d6f441482af4d1fae9cbb59df43e", "f025f09a9970eb3c8fa01fbf4acc665c",
	},
	"wp-pass.php": {
		"4765b38c6a2b3b17da080049489923ee", "9e71ca9b665afc1c4804b60a8cec4e50",
		"b2d13ddac2f77eaeb09717da09b21e53",
	},
	"wp-register.php": {
		"847e389ea06211783efef2245948a9b6", "287dc5ab04cb97e1a45873f1c87525ca",
		"d09916236fec6752c45c52499d6e2afb", "efab873ea26cfa56e6f4aa4c3eaa988b",
	},
	"wp-rdf.php": {
		"efab873ea26cfa56e6f4aa4c3eaa988b", "fe32d8c9f43141154b734c7bfd6049c8",
		"366997f14f51587e104becf290cea514", integrity.EmptyFileDigest,
		"287dc5ab04cb97e1a45873f1c87525ca",
	},
	"wp-rss.php": {
		"afa3f623e58e064ee758281009ad0971", "fed187a5047c2a2240204c9975d99582",
		"6e22f880b0db7beababe042e995cea43",
	},
	"wp-rss2.php": {
		"8b44c1f3b0f7aab1f6ab2c11d15d9ae2", "2e0c91f0a744fb21cc0f422a6305fc64",
		"ec83d6f441482af4d1fae9cbb59df43e",
	},
	"wp-admin/js/utils.js": {
		"284f0a2c317e3e094f08677e1b451c8a", "549df3fa634602b63688d98547c6f452",
		"e102613271d205d357aa317ee6c8f32b",
	},
	"wp-includes/js/tinymce/utils/form_utils.js": {
		"13541f120c5fa567e36f8e10d6ddcfed", "337d7e2efe224c1c7da72d40b612d0a6",
		"a32d1bbc44057b7dd0d2776ba2826b7c", "e33f3bde78ed04cd3039cd41c669f0c7",
		"f9c61354383f5a50a9a77b902dfdae7f",
	},
	"wp-includes/js/utils.js": {
		"01b7f89601bfa36ffee09f056f2cc38a", "a5f4880c9cca30561e9290f0dafda128",
		"b59e4faadb8e122faa031d99f1966ea4",
	},
	"wp-includes/class-wp-atom-server.php": {
		"3b5db0512c358ecdf1b0200cb750bde9", "e6e3267096e302682bb221b33939a48f",
	},
	"wp-content/advanced-cache.php": {"567c4d364fb682c764b37112a9197f05"},
	"wp-content/plugins/index.php":  nil,
	"wp-content/themes/index.php":   nil,
	"wp-content/index.php":          nil,
	"wp-admin/index.php":            nil,
	"wp-content/plugins/hello.php": {
		"29e34b280a057483545b48e1d3770760", "46786b52f0e2b975500800dae922b038",
	},
	"index.php": nil,
}

// mergeWordPressLegacy widens each listed path to accept the stub sums and
// its legacy contents in addition to what the release ships.
func mergeWordPressLegacy(files map[string]integrity.Digest) {
	for rel, legacy := range wordpressLegacySums {
		merged := integrity.OneOf(legacyStubSums...).Extend(legacy...)
		if shipped, ok := files[rel]; ok {
			merged = merged.Extend(shipped.Values()...)
		}
		files[rel] = merged
	}
}
