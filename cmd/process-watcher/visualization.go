package main

const visualizationHelp = `
VISUALIZATION GUIDE
===================

process-watcher writes CSV, JSON or YAML that most tools can load directly.

Excel / Google Sheets (use --output csv):
  1. Excel: Data -> Get Data -> From Text/CSV
  2. Google Sheets: File -> Import -> Upload
  Choose comma (,) as the delimiter.

jq (use --output json):
  process-watcher --automation -o json | jq '.processes[] | [.name, .memory_megabyte]'

Grafana / other dashboards:
  Write snapshots to a directory or an s3:// bucket on a schedule and point a
  JSON or CSV datasource at the files.
`
