package s3client

import "time"

type Option func(c *S3Client)

// Endpoint points the client at an S3 compatible server such as MinIO.
func Endpoint(url string) Option {
	return func(c *S3Client) {
		c.endpoint = url
	}
}

// Credentials sets static keys. Without them the default AWS chain is used.
func Credentials(accessKey, secretKey string) Option {
	return func(c *S3Client) {
		c.accessKey = accessKey
		c.secretKey = secretKey
	}
}

func Region(region string) Option {
	return func(c *S3Client) {
		if region != "" {
			c.region = region
		}
	}
}

func UsePathStyle(use bool) Option {
	return func(c *S3Client) {
		c.usePathStyle = use
	}
}

// Ping sets how many times and how often New checks the endpoint.
func Ping(attempts int, interval time.Duration) Option {
	return func(c *S3Client) {
		c.connAttempts = attempts
		c.connTimeout = interval
	}
}
