package help

// ColdstartYAML is printed by `lar quickstart` and sent as the MCP server instructions.
const ColdstartYAML = `# llm-archive-reader Quick Start

read_modes:
  processed: "Default. HTML becomes markdown, JSON is pretty-printed, binaries are described"
  raw: "Text passes through untouched, binaries come back base64-encoded"

commands:
  list_archives: |
    lar list

  archive_details: |
    lar info wikipedia_en_top.zip

  read_entry: |
    lar read wikipedia_en_top.zip "A/Go_(programming_language)"

  read_raw: |
    lar read --raw wikipedia_en_top.zip I/logo.png

  main_page: |
    lar main wikipedia_en_top.zip

  random_sample: |
    lar random --count 10
    lar random --count 5 wikipedia_en_top.zip

  search: |
    lar search --limit 20 --offset 20 "gopher" --file wikipedia_en_top.zip

  serve_mcp: |
    lar serve                      # stdio
    lar serve --transport http     # POST /mcp, GET /health, GET /metrics

mcp_tools:
  list_archives: "Every archive under the archive directory"
  get_archive_metadata: "Descriptor for one archive plus cache membership"
  read_entry: "One entry by path; raw_output and return_markdown_only flags"
  search_archives: "Title search with max_results and start_offset"
  get_random_entries: "1-50 random entries spread across archives"
  get_main_entry: "The archive's home page"
  get_cache_stats: "Handle and descriptor cache occupancy"

mcp_resources:
  - "archive://files"
  - "archive://{filename}/metadata"
  - "archive://{filename}/entry/{path}"

limits:
  - "Content longer than content.max_content_length characters is truncated with a marker"
  - "Archives above archives.max_file_size_mb are listed without metadata"
  - "random: count/archives entries per archive (at least 1), may return fewer than requested"
  - "search: has_more is true when a full page came back"

error_behavior:
  - "Filenames that resolve outside the archive directory are rejected"
  - "Missing archives and entries are reported as not found"
  - "Archives that fail to open are skipped in list, random and search"
`
