// Warden - Cloud Account Security Auditor
// Discover. Check. Report.
package main

func main() {
	Execute()
}
