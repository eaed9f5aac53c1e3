// Command eshop-scraper scrapes game metadata from the HK eShop into a
// Postgres games table, driven by a durable on-disk work queue.
package main
