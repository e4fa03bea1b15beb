package stealth

import (
	"fmt"
	"math/rand"
	"time"
)

// SleepRandom sleeps for a random duration between min and max milliseconds
func SleepRandom(minMs, maxMs int) {
	if maxMs < minMs {
		maxMs = minMs
	}
	d := time.Duration(minMs+rand.Intn(maxMs-minMs+1)) * time.Millisecond
	time.Sleep(d)
}

// Script returns the anti-detection JavaScript evaluated on every new page.
// Agency sites rarely run aggressive bot checks, but form builders embedded in
// them (Typeform, Jotform, Wix) do look at navigator properties.
func Script(width, height int, platform string) string {
	return fmt.Sprintf(`(() => {
		const width = %d;
		const height = %d;
		const platform = %q;
		// 1. Remove webdriver property
		Object.defineProperty(navigator, 'webdriver', {
			get: () => undefined
		});

		// 2. Mock chrome object (makes it look like real Chrome)
		window.chrome = {
			runtime: {},
			loadTimes: function() {},
			csi: function() {},
			app: {}
		};

		// 3. Mock plugins (realistic set)
		Object.defineProperty(navigator, 'plugins', {
			get: () => [
				{
					name: 'PDF Viewer',
					filename: 'internal-pdf-viewer',
					description: 'Portable Document Format'
				},
				{
					name: 'Chrome PDF Viewer',
					filename: 'internal-pdf-viewer',
					description: 'Portable Document Format'
				}
			]
		});

		// 4. Mock languages (realistic)
		Object.defineProperty(navigator, 'languages', {
			get: () => ['en-GB', 'en']
		});

		// 5. Override permission API
		const originalQuery = window.navigator.permissions.query;
		window.navigator.permissions.query = (parameters) => (
			parameters.name === 'notifications'
				? Promise.resolve({ state: Notification.permission })
				: originalQuery(parameters)
		);

		// 6. Mock hardware concurrency
		Object.defineProperty(navigator, 'hardwareConcurrency', {
			get: () => 4 + Math.floor(Math.random() * 8)
		});

		// 7. Mock device memory
		Object.defineProperty(navigator, 'deviceMemory', {
			get: () => 8
		});

		// 8. Screen dimensions consistency
		Object.defineProperty(window.screen, 'width', {
			get: () => width + 100
		});
		Object.defineProperty(window.screen, 'height', {
			get: () => height + 100
		});
		Object.defineProperty(window.screen, 'availWidth', {
			get: () => width + 100
		});
		Object.defineProperty(window.screen, 'availHeight', {
			get: () => height + 60
		});

		// 9. Platform consistency
		Object.defineProperty(navigator, 'platform', {
			get: () => platform
		});
	})()`, width, height, platform)
}
