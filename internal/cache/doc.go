// Package cache implements the content-addressed build cache.
//
// Layout under the cache directory:
//
//	.nextgen_cache/
//	  <key>.json          manifest
//	  <key>/files/<name>  artifact copies
//	  index.db            listing index (advisory)
//
// An optional remote tier speaks a small HTTP protocol:
//
//	GET {remote}/manifest/{key}
//	GET {remote}/file/{key}/{name}
//	PUT {remote}/file/{key}/{name}
//
// Cache failures never fail a build; the boolean API reports them as misses.
package cache
