package models

// Descriptor summarizes one archive file. It is immutable once built.
type Descriptor struct {
	Filename         string `json:"filename" yaml:"filename"`
	Filepath         string `json:"filepath" yaml:"filepath"`
	Size             int64  `json:"size" yaml:"size"`
	SizeFormatted    string `json:"size_formatted" yaml:"size_formatted"`
	ArticleCount     int    `json:"article_count" yaml:"article_count"`
	MediaCount       int    `json:"media_count" yaml:"media_count"`
	Title            string `json:"title" yaml:"title"`
	Description      string `json:"description" yaml:"description"`
	Language         string `json:"language" yaml:"language"`
	Creator          string `json:"creator" yaml:"creator"`
	Date             string `json:"date" yaml:"date"`
	HasFulltextIndex bool   `json:"has_fulltext_index" yaml:"has_fulltext_index"`
	HasTitleIndex    bool   `json:"has_title_index" yaml:"has_title_index"`
	UUID             string `json:"uuid" yaml:"uuid"`
	// Degraded is set when metadata loading was skipped for size.
	Degraded bool `json:"degraded,omitempty" yaml:"degraded,omitempty"`
}

// CacheStats reports the catalog's cache occupancy.
type CacheStats struct {
	ArchiveCacheSize    int   `json:"archive_cache_size" yaml:"archive_cache_size"`
	ArchiveCacheMaxSize int   `json:"archive_cache_max_size" yaml:"archive_cache_max_size"`
	ArchiveCacheHits    int64 `json:"archive_cache_hits" yaml:"archive_cache_hits"`
	ArchiveCacheMisses  int64 `json:"archive_cache_misses" yaml:"archive_cache_misses"`
	ArchiveEvictions    int64 `json:"archive_evictions" yaml:"archive_evictions"`
	OpenHandles         int64 `json:"open_handles" yaml:"open_handles"`
	DescriptorCacheSize int   `json:"file_info_cache_size" yaml:"file_info_cache_size"`
	DiscoveryCached     bool  `json:"available_files_cached" yaml:"available_files_cached"`
	// CachedArchives lists archives with an open handle, least recently used first.
	CachedArchives []string `json:"cached_archives" yaml:"cached_archives"`
}
