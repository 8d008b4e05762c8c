// Command bookcrawl crawls a books catalog into per-category CSV files and
// product images, and validates the resulting data directory.
//
// Usage:
//
//	bookcrawl scrape [url]
//	bookcrawl list [url]
//	bookcrawl validate --specs categories.csv
package main

func main() {
	Execute()
}
